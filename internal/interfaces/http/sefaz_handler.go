package http

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/construtech/nfe-sync-api/internal/application/dto"
	"github.com/construtech/nfe-sync-api/internal/application/fiscal"
	"github.com/construtech/nfe-sync-api/internal/domain"
)

// SefazHandler atende as consultas à SEFAZ (incremental, chave e lote).
// O certificado A1 chega como upload multipart em toda requisição.
type SefazHandler struct {
	sync  *fiscal.SyncUseCase
	batch *fiscal.BatchUseCase
}

// NewSefazHandler constrói o handler.
func NewSefazHandler(sync *fiscal.SyncUseCase, batch *fiscal.BatchUseCase) *SefazHandler {
	return &SefazHandler{sync: sync, batch: batch}
}

// tamanho da chave de acesso de NF-e
const tamanhoChave = 44

// Consultar dispara a sincronização incremental por NSU.
// POST /api/sefaz/consultar
func (h *SefazHandler) Consultar(c *fiber.Ctx) error {
	in, errResp := h.lerEntrada(c)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(*errResp)
	}

	res, err := h.sync.Sincronizar(c.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrUFNaoSuportada) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "UF_INVALIDA", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(res)
}

// ConsultarChave consulta a situação de uma chave de acesso.
// POST /api/sefaz/consultar/chave
func (h *SefazHandler) ConsultarChave(c *fiber.Ctx) error {
	in, errResp := h.lerEntrada(c)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(*errResp)
	}
	chave := c.FormValue("chave")
	if len(chave) != tamanhoChave {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "chave de acesso deve ter 44 dígitos"})
	}

	res, err := h.sync.ConsultarChave(c.Context(), in, chave)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(res)
}

// ConsultarLote resolve as chaves de acesso de uma planilha XLSX.
// POST /api/sefaz/consultar/lote
func (h *SefazHandler) ConsultarLote(c *fiber.Ctx) error {
	in, errResp := h.lerEntrada(c)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(*errResp)
	}
	planilha, err := lerUpload(c, "arquivo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "ARQUIVO_AUSENTE", Message: domain.ErrArquivoAusente.Error()})
	}

	res, err := h.batch.ProcessarLote(c.Context(), in, planilha)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(res)
}

// lerEntrada monta as credenciais a partir do formulário multipart.
func (h *SefazHandler) lerEntrada(c *fiber.Ctx) (fiscal.Entrada, *dto.ErrorResponse) {
	cert, err := lerUpload(c, "certificate")
	if err != nil {
		return fiscal.Entrada{}, &dto.ErrorResponse{Code: "CERTIFICADO_AUSENTE", Message: domain.ErrCertificadoAusente.Error()}
	}
	cnpj := c.FormValue("cnpj")
	if cnpj == "" {
		return fiscal.Entrada{}, &dto.ErrorResponse{Code: "VALIDATION", Message: "cnpj requerido"}
	}

	uf := c.FormValue("state")
	if uf == "" {
		uf = "SP"
	}
	tpAmb := c.FormValue("tpAmb")
	if tpAmb == "" {
		tpAmb = "1"
	}
	return fiscal.Entrada{
		CNPJ:        cnpj,
		Senha:       c.FormValue("password"),
		Certificado: cert,
		UF:          uf,
		TpAmb:       tpAmb,
	}, nil
}

// lerUpload devolve o conteúdo de um arquivo enviado no campo informado.
func lerUpload(c *fiber.Ctx, campo string) ([]byte, error) {
	fh, err := c.FormFile(campo)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
