package sefaz

import (
	"fmt"

	"github.com/construtech/nfe-sync-api/internal/domain"
)

// Endpoints do Ambiente Nacional (AN) da SEFAZ.
const (
	endpointDistProd = "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
	endpointDistHom  = "https://hom1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"

	endpointConsProd = "https://www.nfe.fazenda.gov.br/NFeConsultaProtocolo4/NFeConsultaProtocolo4.asmx"
	endpointConsHom  = "https://hom.nfe.fazenda.gov.br/NFeConsultaProtocolo4/NFeConsultaProtocolo4.asmx"

	actionDist = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe/nfeDistDFeInteresse"
	actionCons = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4/nfeConsultaNF2"
)

// ufCodigo mapeia sigla de UF para o código IBGE usado em cUFAutor.
var ufCodigo = map[string]string{
	"AC": "12", "AL": "27", "AM": "13", "AP": "16", "BA": "29", "CE": "23",
	"DF": "53", "ES": "32", "GO": "52", "MA": "21", "MG": "31", "MS": "50",
	"MT": "51", "PA": "15", "PB": "25", "PE": "26", "PI": "22", "PR": "41",
	"RJ": "33", "RN": "24", "RO": "11", "RR": "14", "RS": "43", "SC": "42",
	"SE": "28", "SP": "35", "TO": "17",
}

// ResolveUF aceita sigla ("SP") ou código IBGE já numérico ("35") e devolve o
// código do cUFAutor. UF desconhecida é erro de entrada, nunca retentado.
func ResolveUF(uf string) (string, error) {
	if codigo, ok := ufCodigo[uf]; ok {
		return codigo, nil
	}
	for _, codigo := range ufCodigo {
		if codigo == uf {
			return uf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUFNaoSuportada, uf)
}

// distEndpoint devolve a URL da distribuição conforme o ambiente.
func distEndpoint(tpAmb string) string {
	if tpAmb == "2" {
		return endpointDistHom
	}
	return endpointDistProd
}

// consEndpoint devolve a URL da consulta de protocolo conforme o ambiente.
func consEndpoint(tpAmb string) string {
	if tpAmb == "2" {
		return endpointConsHom
	}
	return endpointConsProd
}
