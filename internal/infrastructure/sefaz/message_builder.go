package sefaz

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Namespaces e versões de schema definidos pelo portal fiscal.
const (
	nsNFe      = "http://www.portalfiscal.inf.br/nfe"
	nsWsdlDist = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"
	nsWsdlCons = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4"

	nsSoap12 = "http://www.w3.org/2003/05/soap-envelope"
	nsXsi    = "http://www.w3.org/2001/XMLSchema-instance"
	nsXsd    = "http://www.w3.org/2001/XMLSchema"

	versaoDist = "1.01"
	versaoCons = "4.00"
)

// Request é uma chamada SOAP pronta para o transporte: endpoint, SOAPAction,
// envelope serializado e o payload interno (nfeDadosMsg) para auditoria.
type Request struct {
	URL      string
	Action   string
	Envelope []byte
	DadosMsg string
}

// ── Payloads do portal fiscal ─────────────────────────────────────────────────

type distDFeInt struct {
	XMLName  xml.Name `xml:"distDFeInt"`
	Xmlns    string   `xml:"xmlns,attr"`
	Versao   string   `xml:"versao,attr"`
	TpAmb    string   `xml:"tpAmb"`
	CUFAutor string   `xml:"cUFAutor"`
	CNPJ     string   `xml:"CNPJ"`
	DistNSU  distNSU  `xml:"distNSU"`
}

type distNSU struct {
	UltNSU string `xml:"ultNSU"`
}

type consSitNFe struct {
	XMLName xml.Name `xml:"consSitNFe"`
	Xmlns   string   `xml:"xmlns,attr"`
	Versao  string   `xml:"versao,attr"`
	TpAmb   string   `xml:"tpAmb"`
	XServ   string   `xml:"xServ"`
	ChNFe   string   `xml:"chNFe"`
}

// ── Envelope SOAP 1.2 ─────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name `xml:"soap12:Envelope"`
	XmlnsXsi  string   `xml:"xmlns:xsi,attr"`
	XmlnsXsd  string   `xml:"xmlns:xsd,attr"`
	XmlnsSoap string   `xml:"xmlns:soap12,attr"`
	Body      soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soap12:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type nfeDistDFeInteresse struct {
	XMLName  xml.Name `xml:"nfeDistDFeInteresse"`
	Xmlns    string   `xml:"xmlns,attr"`
	DadosMsg dadosMsg `xml:"nfeDadosMsg"`
}

type nfeConsultaNF2 struct {
	XMLName  xml.Name `xml:"nfeConsultaNF2"`
	Xmlns    string   `xml:"xmlns,attr"`
	DadosMsg dadosMsg `xml:"nfeDadosMsg"`
}

// dadosMsg carrega o XML do serviço como filho literal do nfeDadosMsg
// (innerxml é escrito verbatim, sem escape).
type dadosMsg struct {
	Inner string `xml:",innerxml"`
}

// ── Construção ────────────────────────────────────────────────────────────────

// BuildDistribuicao monta a consulta incremental (distDFeInt 1.01) embrulhada
// em SOAP 1.2. Falha apenas se a UF não puder ser resolvida; construção pura,
// sem estado externo.
func BuildDistribuicao(tpAmb, uf, cnpj, ultNSU string) (*Request, error) {
	cUFAutor, err := ResolveUF(uf)
	if err != nil {
		return nil, err
	}

	payload := distDFeInt{
		Xmlns:    nsNFe,
		Versao:   versaoDist,
		TpAmb:    tpAmb,
		CUFAutor: cUFAutor,
		CNPJ:     SomenteDigitos(cnpj),
		DistNSU:  distNSU{UltNSU: ultNSU},
	}
	inner, err := xml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar distDFeInt: %w", err)
	}

	envelope, err := wrapEnvelope(nfeDistDFeInteresse{
		Xmlns:    nsWsdlDist,
		DadosMsg: dadosMsg{Inner: string(inner)},
	})
	if err != nil {
		return nil, err
	}

	return &Request{
		URL:      distEndpoint(tpAmb),
		Action:   actionDist,
		Envelope: envelope,
		DadosMsg: string(inner),
	}, nil
}

// BuildConsultaChave monta a consulta de situação de uma chave de acesso
// (consSitNFe 4.00) embrulhada em SOAP 1.2.
func BuildConsultaChave(tpAmb, chave string) (*Request, error) {
	payload := consSitNFe{
		Xmlns:  nsNFe,
		Versao: versaoCons,
		TpAmb:  tpAmb,
		XServ:  "CONSULTAR",
		ChNFe:  chave,
	}
	inner, err := xml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar consSitNFe: %w", err)
	}

	envelope, err := wrapEnvelope(nfeConsultaNF2{
		Xmlns:    nsWsdlCons,
		DadosMsg: dadosMsg{Inner: string(inner)},
	})
	if err != nil {
		return nil, err
	}

	return &Request{
		URL:      consEndpoint(tpAmb),
		Action:   actionCons,
		Envelope: envelope,
		DadosMsg: string(inner),
	}, nil
}

func wrapEnvelope(content interface{}) ([]byte, error) {
	env := soapEnvelope{
		XmlnsXsi:  nsXsi,
		XmlnsXsd:  nsXsd,
		XmlnsSoap: nsSoap12,
		Body:      soapBody{Content: content},
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar envelope SOAP: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// SomenteDigitos remove tudo que não for dígito (CNPJ pode vir formatado).
func SomenteDigitos(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
