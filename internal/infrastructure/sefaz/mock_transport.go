package sefaz

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// MockTransport substitui o WS da SEFAZ por respostas simuladas e
// estruturalmente válidas (ativado por SEFAZ_MOCK=true). Nenhum I/O de rede;
// útil para testes determinísticos e ambientes sem certificado.
type MockTransport struct{}

// NewMockTransport constrói o transporte simulado.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// MockUltNSU é o cursor declarado pela resposta simulada de distribuição.
const MockUltNSU = "000000000123456"

// Post devolve a resposta canônica conforme a operação solicitada.
func (m *MockTransport) Post(_ context.Context, req *Request, _ Credenciais) ([]byte, error) {
	switch req.Action {
	case actionDist:
		return m.respostaDistribuicao(req), nil
	case actionCons:
		return m.respostaConsulta(req), nil
	default:
		return nil, fmt.Errorf("sefaz: operação simulada desconhecida: %s", req.Action)
	}
}

func (m *MockTransport) respostaDistribuicao(req *Request) []byte {
	tpAmb := extrairCampo(req.DadosMsg, "tpAmb")
	resposta := fmt.Sprintf(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe">
      <nfeDistDFeInteresseResult>
        <retDistDFeInt versao="1.01" xmlns="http://www.portalfiscal.inf.br/nfe">
          <tpAmb>%s</tpAmb>
          <verAplic>SP_NFE_PL_009_V4</verAplic>
          <cStat>138</cStat>
          <xMotivo>Documentos localizados</xMotivo>
          <dhResp>%s</dhResp>
          <ultNSU>%s</ultNSU>
          <maxNSU>000000000123457</maxNSU>
          <loteDistDFeInt>
            <docZip NSU="%s" schema="procNFe_v4.00.xsd">%s</docZip>
          </loteDistDFeInt>
        </retDistDFeInt>
      </nfeDistDFeInteresseResult>
    </nfeDistDFeInteresseResponse>
  </soap:Body>
</soap:Envelope>`,
		tpAmb, time.Now().Format(time.RFC3339), MockUltNSU, MockUltNSU,
		GzipBase64([]byte(SampleNFeProc)))
	return []byte(resposta)
}

func (m *MockTransport) respostaConsulta(req *Request) []byte {
	chave := extrairCampo(req.DadosMsg, "chNFe")
	tpAmb := extrairCampo(req.DadosMsg, "tpAmb")
	resposta := fmt.Sprintf(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeConsultaNF2Response xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4">
      <nfeConsultaNF2Result>
        <retConsSitNFe versao="4.00" xmlns="http://www.portalfiscal.inf.br/nfe">
          <tpAmb>%s</tpAmb>
          <verAplic>SP_NFE_PL_009_V4</verAplic>
          <cStat>100</cStat>
          <xMotivo>Autorizado o uso da NF-e</xMotivo>
          <protNFe versao="4.00">
            <infProt>
              <chNFe>%s</chNFe>
              <dhRecbto>%s</dhRecbto>
              <cStat>100</cStat>
              <xMotivo>Autorizado o uso da NF-e</xMotivo>
            </infProt>
          </protNFe>
        </retConsSitNFe>
      </nfeConsultaNF2Result>
    </nfeConsultaNF2Response>
  </soap:Body>
</soap:Envelope>`,
		tpAmb, chave, time.Now().Format(time.RFC3339))
	return []byte(resposta)
}

// GzipBase64 comprime e codifica um corpo XML no formato docZip
// (Base64(gzip(UTF-8))). Exportado porque os testes montam lotes com ele.
func GzipBase64(xmlBody []byte) string {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(xmlBody)
	_ = zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// extrairCampo lê o texto de um elemento simples do payload de auditoria.
func extrairCampo(xmlStr, tag string) string {
	abre := "<" + tag + ">"
	fecha := "</" + tag + ">"
	i := strings.Index(xmlStr, abre)
	j := strings.Index(xmlStr, fecha)
	if i < 0 || j < 0 || j < i {
		return ""
	}
	return xmlStr[i+len(abre) : j]
}

// SampleNFeProc é o documento de referência devolvido pelo lote simulado.
const SampleNFeProc = `<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35191111111111111111550010000012341000012345" versao="4.00">
      <ide>
        <cUF>35</cUF>
        <cNF>00012345</cNF>
        <natOp>VENDA DE MERCADORIAS</natOp>
        <mod>55</mod>
        <serie>1</serie>
        <nNF>12345</nNF>
        <dhEmi>2025-10-30T12:30:00-03:00</dhEmi>
        <tpNF>1</tpNF>
        <idDest>1</idDest>
        <cMunFG>3550308</cMunFG>
        <tpImp>1</tpImp>
        <tpEmis>1</tpEmis>
        <cDV>0</cDV>
        <tpAmb>1</tpAmb>
        <finNFe>1</finNFe>
        <indFinal>1</indFinal>
        <indPres>1</indPres>
        <procEmi>0</procEmi>
        <verProc>4.00</verProc>
      </ide>
      <emit>
        <CNPJ>12345678000100</CNPJ>
        <xNome>EMPRESA TESTE LTDA</xNome>
        <xFant>EMPRESA TESTE</xFant>
        <enderEmit>
          <xLgr>Rua Exemplo</xLgr>
          <nro>123</nro>
          <xBairro>Centro</xBairro>
          <cMun>3550308</cMun>
          <xMun>Sao Paulo</xMun>
          <UF>SP</UF>
          <CEP>01000000</CEP>
        </enderEmit>
        <IE>123456789</IE>
        <CRT>3</CRT>
      </emit>
      <dest>
        <CPF>98765432100</CPF>
        <xNome>CLIENTE A LTDA</xNome>
        <enderDest>
          <xLgr>Avenida Central</xLgr>
          <nro>999</nro>
          <xBairro>Centro</xBairro>
          <cMun>3304557</cMun>
          <xMun>Rio de Janeiro</xMun>
          <UF>RJ</UF>
          <CEP>20000000</CEP>
        </enderDest>
        <indIEDest>9</indIEDest>
      </dest>
      <det nItem="1">
        <prod>
          <cProd>ABC123</cProd>
          <xProd>Produto de Teste 1</xProd>
          <CFOP>5102</CFOP>
          <uCom>UN</uCom>
          <qCom>2.0000</qCom>
          <vUnCom>789.22</vUnCom>
          <vProd>1578.44</vProd>
        </prod>
      </det>
      <det nItem="2">
        <prod>
          <cProd>XYZ789</cProd>
          <xProd>Produto de Teste 3</xProd>
          <CFOP>5102</CFOP>
          <uCom>UN</uCom>
          <qCom>1.0000</qCom>
          <vUnCom>100.00</vUnCom>
          <vProd>100.00</vProd>
        </prod>
      </det>
      <total>
        <ICMSTot>
          <vBC>0.00</vBC>
          <vICMS>0.00</vICMS>
          <vICMSDeson>0.00</vICMSDeson>
          <vFCP>0.00</vFCP>
          <vProd>1678.44</vProd>
          <vNF>1678.44</vNF>
        </ICMSTot>
      </total>
      <transp>
        <modFrete>0</modFrete>
        <transporta>
          <xNome>TRANSPORTADORA MOCK</xNome>
          <CNPJ>55667788000122</CNPJ>
          <xEnder>Rua das Entregas 45</xEnder>
          <xMun>Sao Paulo</xMun>
          <UF>SP</UF>
        </transporta>
        <veicTransp>
          <placa>ABC1234</placa>
          <UF>SP</UF>
        </veicTransp>
      </transp>
    </infNFe>
  </NFe>
</nfeProc>`
