package arquivei

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/construtech/nfe-sync-api/pkg/config"
)

const (
	baseURL        = "https://api.arquivei.com.br/v1/nfe/received"
	timeoutChamada = 20 * time.Second
	limitePagina   = "50"
)

// Client consulta as NF-e recebidas no agregador Arquivei.
type Client struct {
	cfg  config.ArquiveiConfig
	http *http.Client
	base string
}

// NewClient constrói o cliente com as credenciais do ambiente.
func NewClient(cfg config.ArquiveiConfig) *Client {
	return &Client{cfg: cfg, http: &http.Client{}, base: baseURL}
}

// BuscarNotas lista as notas recebidas do CNPJ no período informado.
// A API embrulha a lista em {"data": [...]}; devolvemos só a lista.
func (c *Client) BuscarNotas(ctx context.Context, cnpj, inicio, fim string) ([]json.RawMessage, error) {
	if c.cfg.APIID == "" || c.cfg.APIKey == "" {
		return nil, fmt.Errorf("credenciais da API Arquivei não configuradas")
	}

	params := url.Values{}
	params.Set("cnpj[]", cnpj)
	params.Set("created_at[from]", inicio)
	params.Set("created_at[to]", fim)
	params.Set("limit", limitePagina)
	params.Set("format_type", "json")

	callCtx, cancel := context.WithTimeout(ctx, timeoutChamada)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-ID", c.cfg.APIID)
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("consultar Arquivei: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("ler resposta Arquivei: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Arquivei respondeu status %d", resp.StatusCode)
	}

	var resposta struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resposta); err != nil {
		return nil, fmt.Errorf("decodificar resposta Arquivei: %w", err)
	}
	return resposta.Data, nil
}
