package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/construtech/nfe-sync-api/internal/application/fiscal"
	infraarquivei "github.com/construtech/nfe-sync-api/internal/infrastructure/arquivei"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/postgres"
	infrasefaz "github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
	infrauau "github.com/construtech/nfe-sync-api/internal/infrastructure/uau"
	httpRouter "github.com/construtech/nfe-sync-api/internal/interfaces/http"
	"github.com/construtech/nfe-sync-api/pkg/config"
	"github.com/construtech/nfe-sync-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicação")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	notaRepo := postgres.NewNotaFiscalRepository(pool)
	logRepo := postgres.NewNfeLogRepository(pool)

	// Transporte SOAP: real (mTLS) ou simulado conforme SEFAZ_MOCK.
	var transporte infrasefaz.Transport
	if cfg.Sefaz.Mock {
		log.Warn().Msg("SEFAZ_MOCK ativo: respostas simuladas, sem I/O de rede")
		transporte = infrasefaz.NewMockTransport()
	} else {
		transporte = infrasefaz.NewSOAPClient()
	}

	cursor := infrasefaz.NewCursorStore(cfg.Sefaz.NSUFile)
	arquivo := infrasefaz.NewArchiveWriter(cfg.Sefaz.XMLDir)

	syncUC := fiscal.NewSyncUseCase(notaRepo, logRepo, transporte, cursor, arquivo, log)
	batchUC := fiscal.NewBatchUseCase(notaRepo, logRepo, transporte, log)

	scheduler := fiscal.NewScheduler(syncUC, cfg.Sefaz, log)
	go scheduler.Start(ctx)

	uauClient := infrauau.NewClient(cfg.UAU)
	arquiveiClient := infraarquivei.NewClient(cfg.Arquivei)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 60,
		WriteTimeout: time.Second * 60,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    16 << 20,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Sync:     syncUC,
		Batch:    batchUC,
		UAU:      uauClient,
		Arquivei: arquiveiClient,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
