package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/construtech/nfe-sync-api/internal/application/fiscal"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/arquivei"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/uau"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Sync     *fiscal.SyncUseCase
	Batch    *fiscal.BatchUseCase
	UAU      *uau.Client
	Arquivei *arquivei.Client
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// SEFAZ (consulta incremental, chave e lote)
	sefazGroup := api.Group("/sefaz")
	sefazHandler := NewSefazHandler(deps.Sync, deps.Batch)
	sefazGroup.Post("/consultar", sefazHandler.Consultar)
	sefazGroup.Post("/consultar/chave", sefazHandler.ConsultarChave)
	sefazGroup.Post("/consultar/lote", sefazHandler.ConsultarLote)

	// Proxy ERP UAU
	uauGroup := api.Group("/uau")
	uauHandler := NewUAUHandler(deps.UAU)
	uauGroup.Post("/consultar-processos", uauHandler.ConsultarProcessos)
	uauGroup.Post("/modelos-nota", uauHandler.ModelosNota)
	uauGroup.Post("/gerar-nota-fiscal", uauHandler.GerarNotaFiscal)

	// Proxy Arquivei
	arquiveiGroup := api.Group("/arquivei")
	arquiveiHandler := NewArquiveiHandler(deps.Arquivei)
	arquiveiGroup.Get("/notas-fiscais", arquiveiHandler.NotasFiscais)
}
