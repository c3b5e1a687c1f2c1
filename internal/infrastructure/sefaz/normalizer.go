package sefaz

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/construtech/nfe-sync-api/internal/domain"
	"github.com/construtech/nfe-sync-api/internal/domain/entity"
)

// NormalizarNota converte um corpo XML de NF-e descompactado no registro
// canônico. Aceita as três formas de raiz distribuídas pela SEFAZ (nfeProc,
// NFe e resNFe). Folha ausente vira default ("" ou zero), nunca erro; só a
// ausência do bloco de identificação descarta o documento.
func NormalizarNota(xmlBody []byte) (*entity.NotaFiscal, error) {
	doc := etree.NewDocument()
	// Autorizadores antigos ainda emitem ISO-8859-1.
	doc.ReadSettings.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1", "windows-1252":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		}
		return input, nil
	}
	if err := doc.ReadFromBytes(xmlBody); err != nil {
		return nil, fmt.Errorf("%w: XML ilegível: %v", domain.ErrNotaSemIdentificacao, err)
	}

	root := doc.Root()
	if root == nil {
		return nil, domain.ErrNotaSemIdentificacao
	}
	switch root.Tag {
	case "nfeProc", "NFe", "resNFe":
	default:
		return nil, fmt.Errorf("%w: raiz %q desconhecida", domain.ErrNotaSemIdentificacao, root.Tag)
	}

	infNFe := root.FindElement("infNFe")
	if infNFe == nil {
		infNFe = root.FindElement("NFe/infNFe")
	}
	if infNFe == nil {
		return nil, domain.ErrNotaSemIdentificacao
	}

	ide := infNFe.FindElement("ide")
	emit := infNFe.FindElement("emit")
	dest := infNFe.FindElement("dest")
	total := infNFe.FindElement("total/ICMSTot")
	transp := infNFe.FindElement("transp")

	nota := &entity.NotaFiscal{
		Numero:      textoFilho(ide, "nNF"),
		DataEmissao: textoFilho(ide, "dhEmi"),

		CUF:      textoFilho(ide, "cUF"),
		CNF:      textoFilho(ide, "cNF"),
		NatOp:    textoFilho(ide, "natOp"),
		Modelo:   textoFilho(ide, "mod"),
		Serie:    textoFilho(ide, "serie"),
		TpNF:     textoFilho(ide, "tpNF"),
		IDDest:   textoFilho(ide, "idDest"),
		CMunFG:   textoFilho(ide, "cMunFG"),
		TpImp:    textoFilho(ide, "tpImp"),
		TpEmis:   textoFilho(ide, "tpEmis"),
		CDV:      textoFilho(ide, "cDV"),
		TpAmb:    textoFilho(ide, "tpAmb"),
		FinNFe:   textoFilho(ide, "finNFe"),
		IndFinal: textoFilho(ide, "indFinal"),
		IndPres:  textoFilho(ide, "indPres"),
		ProcEmi:  textoFilho(ide, "procEmi"),
		VerProc:  textoFilho(ide, "verProc"),

		Emitente:     textoFilho(emit, "xNome"),
		CNPJEmitente: textoFilho(emit, "CNPJ"),
		NomeFantasia: textoFilho(emit, "xFant"),
		IEEmitente:   textoFilho(emit, "IE"),
		CRTEmitente:  textoFilho(emit, "CRT"),
		EnderecoEmitente: juntarEndereco(elementoFilho(emit, "enderEmit"),
			"xLgr", "nro", "xBairro", "xMun", "UF", "CEP"),

		Destinatario:    textoFilho(dest, "xNome"),
		DocDestinatario: primeiroTexto(dest, "CPF", "CNPJ"),
		IndIEDest:       textoFilho(dest, "indIEDest"),
		EnderecoDestinatario: juntarEndereco(elementoFilho(dest, "enderDest"),
			"xLgr", "nro", "xBairro", "xMun", "UF", "CEP"),

		Valor:      decimalFilho(total, "vNF"),
		VBC:        decimalFilho(total, "vBC"),
		VICMS:      decimalFilho(total, "vICMS"),
		VICMSDeson: decimalFilho(total, "vICMSDeson"),
		VFCP:       decimalFilho(total, "vFCP"),
		VProd:      decimalFilho(total, "vProd"),

		ModFrete:           textoFilho(transp, "modFrete"),
		Transportadora:     textoFilho(transp, "transporta/xNome"),
		CNPJTransportadora: textoFilho(transp, "transporta/CNPJ"),
		EnderecoTransportadora: juntarEndereco(elementoFilho(transp, "transporta"),
			"xEnder", "xMun", "UF"),
		PlacaVeiculo: textoFilho(transp, "veicTransp/placa"),
		UFVeiculo:    textoFilho(transp, "veicTransp/UF"),
	}

	for _, det := range infNFe.FindElements("det") {
		prod := det.FindElement("prod")
		nItem, _ := strconv.Atoi(det.SelectAttrValue("nItem", "0"))
		nota.Itens = append(nota.Itens, entity.NotaItem{
			NItem:         nItem,
			Codigo:        textoFilho(prod, "cProd"),
			Descricao:     textoFilho(prod, "xProd"),
			CFOP:          textoFilho(prod, "CFOP"),
			Unidade:       textoFilho(prod, "uCom"),
			Quantidade:    decimalFilho(prod, "qCom"),
			ValorUnitario: decimalFilho(prod, "vUnCom"),
			ValorTotal:    decimalFilho(prod, "vProd"),
		})
	}

	return nota, nil
}

// elementoFilho é FindElement tolerante a pai nil.
func elementoFilho(e *etree.Element, caminho string) *etree.Element {
	if e == nil {
		return nil
	}
	return e.FindElement(caminho)
}

// primeiroTexto devolve o texto do primeiro caminho presente (CPF ou CNPJ).
func primeiroTexto(e *etree.Element, caminhos ...string) string {
	for _, c := range caminhos {
		if t := textoFilho(e, c); t != "" {
			return t
		}
	}
	return ""
}

// decimalFilho interpreta a folha como decimal de ponto fixo; ausência ou
// texto inválido viram zero.
func decimalFilho(e *etree.Element, caminho string) decimal.Decimal {
	t := textoFilho(e, caminho)
	if t == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// juntarEndereco concatena os componentes presentes com ", ", pulando vazios.
func juntarEndereco(ender *etree.Element, tags ...string) string {
	if ender == nil {
		return ""
	}
	var partes []string
	for _, tag := range tags {
		if t := textoFilho(ender, tag); t != "" {
			partes = append(partes, t)
		}
	}
	return strings.Join(partes, ", ")
}
