package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/domain/repository"
)

var _ repository.NfeLogRepository = (*NfeLogRepo)(nil)

// NfeLogRepo implementação de NfeLogRepository (usável com pool ou tx).
type NfeLogRepo struct {
	q Querier
}

// NewNfeLogRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewNfeLogRepository(q Querier) *NfeLogRepo {
	return &NfeLogRepo{q: q}
}

// Create insere um log de ingestão. Append-only: não existe update.
func (r *NfeLogRepo) Create(ctx context.Context, log *entity.NfeLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO nfe_logs (id, cnpj, c_stat, x_motivo, ult_nsu, tp_amb, xml_enviado, soap_raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.CNPJ, log.CStat, log.XMotivo, log.UltNSU, log.TpAmb,
		log.XMLEnviado, log.SoapRaw, log.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("nfe_log %s duplicado: %w", log.ID, err)
		}
		return fmt.Errorf("insert nfe_log: %w", err)
	}
	return nil
}

// FindLatestByCNPJ devolve o log mais recente do CNPJ, ou nil se não houver.
func (r *NfeLogRepo) FindLatestByCNPJ(ctx context.Context, cnpj string) (*entity.NfeLog, error) {
	query := `
		SELECT id, cnpj, c_stat, x_motivo, ult_nsu, tp_amb, xml_enviado, soap_raw, created_at
		FROM nfe_logs WHERE cnpj = $1
		ORDER BY created_at DESC LIMIT 1`
	var l entity.NfeLog
	err := r.q.QueryRow(ctx, query, cnpj).Scan(
		&l.ID, &l.CNPJ, &l.CStat, &l.XMotivo, &l.UltNSU, &l.TpAmb,
		&l.XMLEnviado, &l.SoapRaw, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest nfe_log: %w", err)
	}
	return &l, nil
}
