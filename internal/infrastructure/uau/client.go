package uau

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/construtech/nfe-sync-api/pkg/config"
)

const (
	timeoutAuth     = 20 * time.Second
	timeoutProcesso = 30 * time.Second
)

// Client fala com a API REST do ERP UAU. Toda chamada de negócio autentica
// antes (o token expira rápido e não vale a pena cachear) e envia o token de
// integração fixo junto com o token de sessão.
type Client struct {
	cfg  config.UAUConfig
	http *http.Client
}

// NewClient constrói o cliente com a configuração do ambiente.
func NewClient(cfg config.UAUConfig) *Client {
	return &Client{cfg: cfg, http: &http.Client{}}
}

// ProcessoFiltro são os parâmetros da consulta de processos.
type ProcessoFiltro struct {
	Empresa        int    `json:"empresa"`
	Obra           string `json:"obra"`
	PeriodoInicial string `json:"periodoInicial"`
	PeriodoFinal   string `json:"periodoFinal"`
}

// Autenticar troca as credenciais fixas por um token de sessão.
func (c *Client) Autenticar(ctx context.Context) (string, error) {
	payload := map[string]string{
		"login":          c.cfg.Login,
		"senha":          c.cfg.Senha,
		"UsuarioUAUSite": c.cfg.Site,
	}
	body, err := c.post(ctx, c.cfg.BaseAuth+"/AutenticarUsuario", payload, "", timeoutAuth)
	if err != nil {
		return "", fmt.Errorf("autenticar usuário UAU: %w", err)
	}

	// A API ora devolve {"Authorization": "..."}, ora {"token": "..."},
	// ora a string crua.
	var resposta struct {
		Authorization string `json:"Authorization"`
		Token         string `json:"token"`
	}
	if err := json.Unmarshal(body, &resposta); err == nil {
		if resposta.Authorization != "" {
			return resposta.Authorization, nil
		}
		if resposta.Token != "" {
			return resposta.Token, nil
		}
	}
	var cru string
	if err := json.Unmarshal(body, &cru); err == nil && cru != "" {
		return cru, nil
	}
	return "", fmt.Errorf("autenticar usuário UAU: token não retornado")
}

// ConsultarProcessos autentica e consulta os processos da obra no período.
func (c *Client) ConsultarProcessos(ctx context.Context, f ProcessoFiltro) (json.RawMessage, error) {
	token, err := c.Autenticar(ctx)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"EmpresaObraPeriodo": map[string]any{
			"EmpresaObra":    []map[string]any{{"Empresa": f.Empresa, "Obra": f.Obra}},
			"PeriodoInicial": f.PeriodoInicial,
			"PeriodoFinal":   f.PeriodoFinal,
		},
	}
	body, err := c.post(ctx, c.cfg.BaseProcesso+"/ConsultarProcessos", payload, token, timeoutProcesso)
	if err != nil {
		return nil, fmt.Errorf("consultar processos UAU: %w", err)
	}
	return body, nil
}

// ListarModelosNF autentica e lista os modelos de nota fiscal da empresa.
func (c *Client) ListarModelosNF(ctx context.Context) (json.RawMessage, error) {
	token, err := c.Autenticar(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, c.cfg.BaseProcesso+"/ConsultarModelosNF", map[string]any{}, token, timeoutProcesso)
	if err != nil {
		return nil, fmt.Errorf("listar modelos de NF UAU: %w", err)
	}
	return body, nil
}

// GerarNotaFiscal autentica e repassa o payload recebido sem interpretá-lo.
// O corpo é exatamente o contrato da API do UAU.
func (c *Client) GerarNotaFiscal(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	token, err := c.Autenticar(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, c.cfg.BaseProcesso+"/GerarNotaFiscal", payload, token, timeoutProcesso)
	if err != nil {
		return nil, fmt.Errorf("gerar nota fiscal UAU: %w", err)
	}
	return body, nil
}

// post envia o payload JSON com os cabeçalhos de integração. authToken vazio
// significa chamada de autenticação (sem Authorization).
func (c *Client) post(ctx context.Context, url string, payload any, authToken string, timeout time.Duration) (json.RawMessage, error) {
	var corpo []byte
	switch p := payload.(type) {
	case json.RawMessage:
		corpo = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("serializar payload: %w", err)
		}
		corpo = b
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(corpo))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-INTEGRATION-Authorization", c.cfg.IntegrationToken)
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
