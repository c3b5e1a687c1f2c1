package repository

import (
	"context"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
)

// NfeLogRepository define o porto de persistência dos logs de ingestão.
type NfeLogRepository interface {
	// Create insere um log de execução (append-only).
	Create(ctx context.Context, log *entity.NfeLog) error
	// FindLatestByCNPJ retorna o log mais recente do CNPJ, ou nil se não houver.
	FindLatestByCNPJ(ctx context.Context, cnpj string) (*entity.NfeLog, error)
}
