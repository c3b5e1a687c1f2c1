package repository

import (
	"context"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
)

// NotaFiscalRepository define o porto de persistência das notas canônicas.
type NotaFiscalRepository interface {
	// Upsert grava a nota por número (insert ou update). No update a lista de
	// itens anterior é apagada por completo e substituída — nunca merge parcial.
	Upsert(ctx context.Context, nota *entity.NotaFiscal) error
	// ListByCNPJ retorna as notas do CNPJ ordenadas por data de emissão
	// decrescente (caminho de leitura do fallback). Não carrega itens.
	ListByCNPJ(ctx context.Context, cnpj string) ([]*entity.NotaFiscal, error)
	// GetByNumero retorna a nota com seus itens, ou nil se não existir.
	GetByNumero(ctx context.Context, numero string) (*entity.NotaFiscal, error)
}
