package sefaz

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/construtech/nfe-sync-api/internal/domain"
)

// CStatDocumentosLocalizados é o único código que carrega documentos no
// retorno da distribuição; qualquer outro é ausência de documentos, não erro.
const CStatDocumentosLocalizados = "138"

// StatusAceitos são os cStat da consulta de protocolo tratados como nota
// resolvida (autorizada, cancelada e variantes).
var StatusAceitos = map[string]bool{
	"100": true, "101": true, "135": true, "150": true,
}

// RetDistDFe é o resultado decodificado da distribuição.
type RetDistDFe struct {
	CStat   string
	XMotivo string
	UltNSU  string
	MaxNSU  string
	Docs    []DocZip
}

// DocZip é uma entrada do lote. XML fica vazio e Err preenchido quando a
// descompactação falha; a falha é isolada por entrada.
type DocZip struct {
	NSU    string
	Schema string
	XML    []byte
	Err    error
}

// RetConsSit é o resultado decodificado da consulta de protocolo.
type RetConsSit struct {
	CStat    string
	XMotivo  string
	ChNFe    string
	DhRecbto string
}

// ExtrairElemento localiza um elemento pelo par de tags abre/fecha dentro do
// corpo SOAP bruto. O envelope externo não carrega informação útil e os
// namespaces variam entre autorizadores, então a extração é por substring;
// só o payload interno é interpretado estruturalmente.
func ExtrairElemento(soap []byte, tag string) (string, error) {
	corpo := string(soap)
	inicio := strings.Index(corpo, "<"+tag)
	fim := strings.Index(corpo, "</"+tag+">")
	if inicio < 0 || fim < 0 || fim < inicio {
		return "", fmt.Errorf("%w: %s", domain.ErrRespostaSefazAusente, tag)
	}
	return corpo[inicio : fim+len(tag)+3], nil
}

// DecodeRetDistDFe extrai e interpreta o retDistDFeInt da resposta SOAP.
// Cada docZip é decodificado individualmente (Base64 + gzip); a falha de uma
// entrada não aborta as demais.
func DecodeRetDistDFe(soap []byte) (*RetDistDFe, error) {
	trecho, err := ExtrairElemento(soap, "retDistDFeInt")
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(trecho); err != nil {
		return nil, fmt.Errorf("%w: retDistDFeInt malformado: %v", domain.ErrRespostaSefazAusente, err)
	}
	root := doc.Root()

	ret := &RetDistDFe{
		CStat:   textoFilho(root, "cStat"),
		XMotivo: textoFilho(root, "xMotivo"),
		UltNSU:  textoFilho(root, "ultNSU"),
		MaxNSU:  textoFilho(root, "maxNSU"),
	}

	if lote := root.FindElement("loteDistDFeInt"); lote != nil {
		for _, dz := range lote.FindElements("docZip") {
			entrada := DocZip{
				NSU:    dz.SelectAttrValue("NSU", ""),
				Schema: dz.SelectAttrValue("schema", ""),
			}
			xmlBody, err := descompactarDocZip(dz.Text())
			if err != nil {
				entrada.Err = err
			} else {
				entrada.XML = xmlBody
			}
			ret.Docs = append(ret.Docs, entrada)
		}
	}

	return ret, nil
}

// DecodeRetConsSit extrai e interpreta o retConsSitNFe da resposta SOAP.
func DecodeRetConsSit(soap []byte) (*RetConsSit, error) {
	trecho, err := ExtrairElemento(soap, "retConsSitNFe")
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(trecho); err != nil {
		return nil, fmt.Errorf("%w: retConsSitNFe malformado: %v", domain.ErrRespostaSefazAusente, err)
	}
	root := doc.Root()

	ret := &RetConsSit{
		CStat:   textoFilho(root, "cStat"),
		XMotivo: textoFilho(root, "xMotivo"),
	}
	if infProt := root.FindElement("protNFe/infProt"); infProt != nil {
		ret.ChNFe = textoFilho(infProt, "chNFe")
		ret.DhRecbto = textoFilho(infProt, "dhRecbto")
	}
	return ret, nil
}

// descompactarDocZip decodifica Base64 (tolerante a whitespace) e gunzipa.
func descompactarDocZip(conteudo string) ([]byte, error) {
	limpo := strings.Join(strings.Fields(conteudo), "")
	comprimido, err := base64.StdEncoding.DecodeString(limpo)
	if err != nil {
		return nil, fmt.Errorf("docZip: base64 inválido: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(comprimido))
	if err != nil {
		return nil, fmt.Errorf("docZip: gzip inválido: %w", err)
	}
	defer zr.Close()
	xmlBody, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("docZip: descompactar: %w", err)
	}
	return xmlBody, nil
}

// textoFilho devolve o texto do primeiro filho com a tag, ou "" se ausente.
func textoFilho(e *etree.Element, caminho string) string {
	if e == nil {
		return ""
	}
	filho := e.FindElement(caminho)
	if filho == nil {
		return ""
	}
	return strings.TrimSpace(filho.Text())
}
