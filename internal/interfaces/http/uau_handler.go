package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/construtech/nfe-sync-api/internal/application/dto"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/uau"
)

// UAUHandler expõe o proxy para o ERP UAU.
type UAUHandler struct {
	client *uau.Client
}

// NewUAUHandler constrói o handler.
func NewUAUHandler(client *uau.Client) *UAUHandler {
	return &UAUHandler{client: client}
}

// ConsultarProcessos autentica no UAU e consulta os processos do período.
// POST /api/uau/consultar-processos
func (h *UAUHandler) ConsultarProcessos(c *fiber.Ctx) error {
	var filtro uau.ProcessoFiltro
	if err := c.BodyParser(&filtro); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	body, err := h.client.ConsultarProcessos(c.Context(), filtro)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "UAU", Message: err.Error()})
	}
	return enviarJSON(c, body)
}

// ModelosNota lista os modelos de nota fiscal cadastrados no UAU.
// POST /api/uau/modelos-nota
func (h *UAUHandler) ModelosNota(c *fiber.Ctx) error {
	body, err := h.client.ListarModelosNF(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "UAU", Message: err.Error()})
	}
	return enviarJSON(c, body)
}

// GerarNotaFiscal repassa o payload de geração de nota ao UAU sem tocá-lo.
// POST /api/uau/gerar-nota-fiscal
func (h *UAUHandler) GerarNotaFiscal(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 || !json.Valid(payload) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo JSON inválido"})
	}
	body, err := h.client.GerarNotaFiscal(c.Context(), json.RawMessage(payload))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "UAU", Message: err.Error()})
	}
	return enviarJSON(c, body)
}

// enviarJSON devolve um corpo JSON já serializado pelo upstream.
func enviarJSON(c *fiber.Ctx, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
