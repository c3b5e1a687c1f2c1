package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construtech/nfe-sync-api/internal/application/fiscal"
	"github.com/construtech/nfe-sync-api/internal/domain"
	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
	apphttp "github.com/construtech/nfe-sync-api/internal/interfaces/http"
	"github.com/construtech/nfe-sync-api/pkg/logger"
)

// ── Fakes de persistência ─────────────────────────────────────────────────────

type memNotaRepo struct {
	upserts []*entity.NotaFiscal
}

func (m *memNotaRepo) Upsert(_ context.Context, n *entity.NotaFiscal) error {
	m.upserts = append(m.upserts, n)
	return nil
}

func (m *memNotaRepo) ListByCNPJ(_ context.Context, _ string) ([]*entity.NotaFiscal, error) {
	return nil, nil
}

func (m *memNotaRepo) GetByNumero(_ context.Context, _ string) (*entity.NotaFiscal, error) {
	return nil, domain.ErrNotFound
}

type memLogRepo struct {
	criados []*entity.NfeLog
}

func (m *memLogRepo) Create(_ context.Context, l *entity.NfeLog) error {
	if l.ID == "" {
		l.ID = "log-teste"
	}
	m.criados = append(m.criados, l)
	return nil
}

func (m *memLogRepo) FindLatestByCNPJ(_ context.Context, _ string) (*entity.NfeLog, error) {
	return nil, nil
}

// buildTestApp monta a aplicação com o transporte simulado e repositórios em
// memória; só o caminho HTTP é real.
func buildTestApp(t *testing.T) (*fiber.App, *memNotaRepo) {
	t.Helper()
	log := logger.New(logger.Config{Env: "production", Level: "error"})
	notaRepo := &memNotaRepo{}
	logRepo := &memLogRepo{}
	transporte := sefaz.NewMockTransport()
	cursor := sefaz.NewCursorStore(filepath.Join(t.TempDir(), "nsu.txt"))
	arquivo := sefaz.NewArchiveWriter(filepath.Join(t.TempDir(), "xmls"))

	syncUC := fiscal.NewSyncUseCase(notaRepo, logRepo, transporte, cursor, arquivo, log)
	batchUC := fiscal.NewBatchUseCase(notaRepo, logRepo, transporte, log)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Sync: syncUC, Batch: batchUC})
	return app, notaRepo
}

// formMultipart monta um corpo multipart com os campos e arquivos informados.
func formMultipart(t *testing.T, campos map[string]string, arquivos map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for nome, valor := range campos {
		require.NoError(t, w.WriteField(nome, valor))
	}
	for nome, conteudo := range arquivos {
		fw, err := w.CreateFormFile(nome, nome+".bin")
		require.NoError(t, err)
		_, err = fw.Write(conteudo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postMultipart(t *testing.T, app *fiber.App, rota string, campos map[string]string, arquivos map[string][]byte) *http.Response {
	t.Helper()
	corpo, contentType := formMultipart(t, campos, arquivos)
	req := httptest.NewRequest(http.MethodPost, rota, corpo)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestConsultar_SemCertificado(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar",
		map[string]string{"cnpj": "12345678000100", "password": "x"}, nil)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	corpo, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(corpo), "CERTIFICADO_AUSENTE")
}

func TestConsultar_FluxoCompleto(t *testing.T) {
	app, notaRepo := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar",
		map[string]string{"cnpj": "12.345.678/0001-00", "password": "senha", "state": "SP", "tpAmb": "1"},
		map[string][]byte{"certificate": []byte("pfx-simulado")})
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res struct {
		Notas []map[string]any `json:"notas"`
		Logs  struct {
			CStat      string `json:"cStat"`
			TotalNotas int    `json:"totalNotas"`
		} `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))

	assert.Equal(t, "138", res.Logs.CStat)
	assert.Equal(t, 1, res.Logs.TotalNotas)
	require.Len(t, notaRepo.upserts, 1)
	assert.Equal(t, "12345", notaRepo.upserts[0].Numero)
}

func TestConsultar_UFInvalida(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar",
		map[string]string{"cnpj": "12345678000100", "password": "x", "state": "ZZ"},
		map[string][]byte{"certificate": []byte("pfx")})
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	corpo, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(corpo), "UF_INVALIDA")
}

func TestConsultarChave_ChaveCurta(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar/chave",
		map[string]string{"cnpj": "12345678000100", "password": "x", "chave": "123"},
		map[string][]byte{"certificate": []byte("pfx")})
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	corpo, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(corpo), "44")
}

func TestConsultarLote_SemArquivo(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar/lote",
		map[string]string{"cnpj": "12345678000100", "password": "x"},
		map[string][]byte{"certificate": []byte("pfx")})
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	corpo, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(corpo), "ARQUIVO_AUSENTE")
}

func TestConsultarLote_PlanilhaIlegivel(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := postMultipart(t, app, "/api/sefaz/consultar/lote",
		map[string]string{"cnpj": "12345678000100", "password": "x"},
		map[string][]byte{"certificate": []byte("pfx"), "arquivo": []byte("nao e xlsx")})
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	corpo, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(corpo), "VALIDATION")
}

func TestHealth(t *testing.T) {
	app, _ := buildTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
