package fiscal

import (
	"context"
	"os"
	"time"

	"github.com/construtech/nfe-sync-api/pkg/config"
	"github.com/construtech/nfe-sync-api/pkg/logger"
)

// Scheduler dispara a sincronização incremental em intervalo fixo usando as
// credenciais configuradas no ambiente. Cada rodada é isolada: erro de uma
// execução é logado e a próxima acontece normalmente.
type Scheduler struct {
	sync *SyncUseCase
	cfg  config.SefazConfig
	log  *logger.Logger
}

// NewScheduler constrói o agendador.
func NewScheduler(sync *SyncUseCase, cfg config.SefazConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{sync: sync, cfg: cfg, log: log}
}

// Start roda o laço do agendador até o contexto ser cancelado. Bloqueia;
// o chamador decide a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("intervalo", s.cfg.Intervalo).Msg("agendador de sincronização iniciado")

	ticker := time.NewTicker(s.cfg.Intervalo)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("agendador de sincronização encerrado")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executa uma rodada de sincronização com as credenciais do ambiente.
// Sem certificado configurado (e fora do modo mock) a rodada é pulada.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("rodada agendada abortou")
		}
	}()

	if s.cfg.CNPJ == "" {
		s.log.Warn().Msg("rodada agendada pulada: SEFAZ_CNPJ não configurado")
		return
	}

	var pfx []byte
	if s.cfg.CertPath != "" {
		data, err := os.ReadFile(s.cfg.CertPath)
		if err != nil {
			s.log.Error().Err(err).Str("path", s.cfg.CertPath).Msg("rodada agendada: certificado ilegível")
			return
		}
		pfx = data
	} else if !s.cfg.Mock {
		s.log.Warn().Msg("rodada agendada pulada: SEFAZ_CERT_PATH não configurado")
		return
	}

	res, err := s.sync.Sincronizar(ctx, Entrada{
		CNPJ:        s.cfg.CNPJ,
		Senha:       s.cfg.CertPass,
		Certificado: pfx,
		UF:          s.cfg.UF,
		TpAmb:       s.cfg.TpAmb,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("rodada agendada falhou")
		return
	}
	if res.Relatorio.Fallback != "" {
		s.log.Warn().
			Str("motivo", res.Relatorio.Fallback).
			Int("notas", res.Relatorio.TotalNotas).
			Msg("rodada agendada em fallback")
		return
	}
	s.log.Info().
		Str("ultNSU", res.Relatorio.UltNSU).
		Int("notas", res.Relatorio.TotalNotas).
		Msg("rodada agendada concluída")
}
