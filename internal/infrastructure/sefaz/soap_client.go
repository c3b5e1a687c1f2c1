package sefaz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Credenciais do certificado digital A1 enviado pelo chamador.
type Credenciais struct {
	PFX   []byte // conteúdo bruto do .pfx (PKCS#12)
	Senha string
}

// Transport define o porto de saída para o WS da SEFAZ. A implementação real
// usa SOAP sobre mTLS; para testes e ambientes sem certificado injeta-se o
// transporte simulado.
type Transport interface {
	// Post envia o envelope SOAP e devolve o corpo bruto da resposta.
	// Qualquer status HTTP é aceito: quem julga o conteúdo é o decoder.
	Post(ctx context.Context, req *Request, cred Credenciais) ([]byte, error)
}

// SOAPClient implementa Transport com mTLS. O cliente HTTP é montado por
// chamada porque o certificado chega por requisição.
type SOAPClient struct {
	timeout time.Duration
}

// NewSOAPClient constrói o cliente com o timeout de 40 s que o WS da SEFAZ exige.
func NewSOAPClient() *SOAPClient {
	return &SOAPClient{timeout: 40 * time.Second}
}

// Post executa o POST SOAP 1.2 autenticado com o certificado do chamador.
func (c *SOAPClient) Post(ctx context.Context, req *Request, cred Credenciais) ([]byte, error) {
	cert, err := certificadoDoPFX(cred.PFX, cred.Senha)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
				// Os endpoints da SEFAZ usam cadeias ICP-Brasil que nem todo
				// trust store traz; a validação do servidor fica desligada,
				// igual ao modelo de confiança já acordado com o fisco.
				InsecureSkipVerify: true,
			},
		},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL,
		bytes.NewReader(req.Envelope))
	if err != nil {
		return nil, fmt.Errorf("sefaz: criar request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", req.Action)

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sefaz: timeout ou cancelamento: %w", ctx.Err())
		}
		return nil, fmt.Errorf("sefaz: chamada HTTP falhou: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20)) // máx 16 MB (lotes grandes de docZip)
	if err != nil {
		return nil, fmt.Errorf("sefaz: ler resposta: %w", err)
	}
	return rawBody, nil
}

// certificadoDoPFX decodifica o PKCS#12 (certificado + chave privada) para o
// par TLS usado no mTLS.
func certificadoDoPFX(pfx []byte, senha string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(pfx, senha)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("sefaz: decodificar certificado .pfx: %w", err)
	}
	var pemData []byte
	for _, b := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(b)...)
	}
	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("sefaz: montar par TLS do certificado: %w", err)
	}
	return cert, nil
}
