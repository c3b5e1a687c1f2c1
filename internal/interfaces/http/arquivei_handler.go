package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/construtech/nfe-sync-api/internal/application/dto"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/arquivei"
)

// ArquiveiHandler expõe o proxy para o agregador Arquivei.
type ArquiveiHandler struct {
	client *arquivei.Client
}

// NewArquiveiHandler constrói o handler.
func NewArquiveiHandler(client *arquivei.Client) *ArquiveiHandler {
	return &ArquiveiHandler{client: client}
}

// NotasFiscais lista as NF-e recebidas do CNPJ no período.
// GET /api/arquivei/notas-fiscais?cnpj=...&startDate=...&endDate=...
func (h *ArquiveiHandler) NotasFiscais(c *fiber.Ctx) error {
	cnpj := c.Query("cnpj")
	inicio := c.Query("startDate")
	fim := c.Query("endDate")
	if cnpj == "" || inicio == "" || fim == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cnpj, startDate e endDate são requeridos"})
	}

	notas, err := h.client.BuscarNotas(c.Context(), cnpj, inicio, fim)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "ARQUIVEI", Message: err.Error()})
	}
	return c.JSON(notas)
}
