package sefaz_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construtech/nfe-sync-api/internal/domain"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
)

// envelopeDist embrulha um retDistDFeInt em um envelope SOAP mínimo.
func envelopeDist(miolo string) []byte {
	return []byte(fmt.Sprintf(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe">
      <nfeDistDFeInteresseResult>%s</nfeDistDFeInteresseResult>
    </nfeDistDFeInteresseResponse>
  </soap:Body>
</soap:Envelope>`, miolo))
}

func TestDecodeRetDistDFe_CamposBasicos(t *testing.T) {
	soap := envelopeDist(`<retDistDFeInt versao="1.01" xmlns="http://www.portalfiscal.inf.br/nfe">
      <tpAmb>1</tpAmb>
      <cStat>137</cStat>
      <xMotivo>Nenhum documento localizado</xMotivo>
      <ultNSU>000000000000050</ultNSU>
      <maxNSU>000000000000050</maxNSU>
    </retDistDFeInt>`)

	ret, err := sefaz.DecodeRetDistDFe(soap)
	require.NoError(t, err)

	assert.Equal(t, "137", ret.CStat)
	assert.Equal(t, "Nenhum documento localizado", ret.XMotivo)
	assert.Equal(t, "000000000000050", ret.UltNSU)
	assert.Equal(t, "000000000000050", ret.MaxNSU)
	assert.Empty(t, ret.Docs)
}

func TestDecodeRetDistDFe_ElementoAusente(t *testing.T) {
	ret, err := sefaz.DecodeRetDistDFe([]byte("<html>502 Bad Gateway</html>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRespostaSefazAusente))
	assert.Nil(t, ret)
}

func TestDecodeRetDistDFe_DocZipCorrompidoIsolado(t *testing.T) {
	valido := sefaz.GzipBase64([]byte(`<nfeProc><NFe><infNFe><ide><nNF>777</nNF></ide></infNFe></NFe></nfeProc>`))
	soap := envelopeDist(fmt.Sprintf(`<retDistDFeInt versao="1.01" xmlns="http://www.portalfiscal.inf.br/nfe">
      <cStat>138</cStat>
      <xMotivo>Documentos localizados</xMotivo>
      <ultNSU>000000000000002</ultNSU>
      <loteDistDFeInt>
        <docZip NSU="000000000000001" schema="procNFe_v4.00.xsd">%s</docZip>
        <docZip NSU="000000000000002" schema="procNFe_v4.00.xsd">@@@naoebase64@@@</docZip>
      </loteDistDFeInt>
    </retDistDFeInt>`, valido))

	ret, err := sefaz.DecodeRetDistDFe(soap)
	require.NoError(t, err, "entrada corrompida não derruba o lote")
	require.Len(t, ret.Docs, 2)

	assert.NoError(t, ret.Docs[0].Err)
	assert.Contains(t, string(ret.Docs[0].XML), "<nNF>777</nNF>")
	assert.Equal(t, "000000000000001", ret.Docs[0].NSU)

	assert.Error(t, ret.Docs[1].Err, "só a entrada corrompida carrega o erro")
	assert.Nil(t, ret.Docs[1].XML)
}

func TestDecodeRetDistDFe_Base64ComQuebrasDeLinha(t *testing.T) {
	valido := sefaz.GzipBase64([]byte(`<resNFe><chNFe>123</chNFe></resNFe>`))
	quebrado := valido[:10] + "\n  " + valido[10:]
	soap := envelopeDist(fmt.Sprintf(`<retDistDFeInt xmlns="http://www.portalfiscal.inf.br/nfe">
      <cStat>138</cStat>
      <ultNSU>000000000000001</ultNSU>
      <loteDistDFeInt>
        <docZip NSU="000000000000001" schema="resNFe_v1.01.xsd">%s</docZip>
      </loteDistDFeInt>
    </retDistDFeInt>`, quebrado))

	ret, err := sefaz.DecodeRetDistDFe(soap)
	require.NoError(t, err)
	require.Len(t, ret.Docs, 1)
	assert.NoError(t, ret.Docs[0].Err, "whitespace dentro do Base64 é tolerado")
	assert.Contains(t, string(ret.Docs[0].XML), "<chNFe>123</chNFe>")
}

func TestDecodeRetConsSit_Autorizada(t *testing.T) {
	soap := []byte(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
    <retConsSitNFe versao="4.00" xmlns="http://www.portalfiscal.inf.br/nfe">
      <cStat>100</cStat>
      <xMotivo>Autorizado o uso da NF-e</xMotivo>
      <protNFe versao="4.00"><infProt>
        <chNFe>35191111111111111111550010000012341000012345</chNFe>
        <dhRecbto>2025-10-30T12:31:00-03:00</dhRecbto>
      </infProt></protNFe>
    </retConsSitNFe>
  </soap:Body></soap:Envelope>`)

	ret, err := sefaz.DecodeRetConsSit(soap)
	require.NoError(t, err)
	assert.Equal(t, "100", ret.CStat)
	assert.Equal(t, "35191111111111111111550010000012341000012345", ret.ChNFe)
	assert.Equal(t, "2025-10-30T12:31:00-03:00", ret.DhRecbto)
}

func TestDecodeRetConsSit_SemProtocolo(t *testing.T) {
	soap := []byte(`<x><retConsSitNFe xmlns="http://www.portalfiscal.inf.br/nfe">
      <cStat>217</cStat>
      <xMotivo>NF-e nao consta na base de dados da SEFAZ</xMotivo>
    </retConsSitNFe></x>`)

	ret, err := sefaz.DecodeRetConsSit(soap)
	require.NoError(t, err, "rejeição ainda é resposta válida")
	assert.Equal(t, "217", ret.CStat)
	assert.Empty(t, ret.ChNFe)
	assert.Empty(t, ret.DhRecbto)
}

func TestDecodeRetConsSit_ElementoAusente(t *testing.T) {
	_, err := sefaz.DecodeRetConsSit([]byte("timeout upstream"))
	assert.True(t, errors.Is(err, domain.ErrRespostaSefazAusente))
}
