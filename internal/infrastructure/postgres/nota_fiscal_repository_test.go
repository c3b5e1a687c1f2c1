package postgres_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/postgres"
)

// ── Fake de TxQuerier que grava a sequência de comandos ───────────────────────

type comandoGravado struct {
	sql  string
	args []any
}

// fakeTx registra os Exec da transação. Embute pgx.Tx para satisfazer a
// interface; só Exec, Commit e Rollback são implementados.
type fakeTx struct {
	pgx.Tx
	comandos   []comandoGravado
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.comandos = append(t.comandos, comandoGravado{sql: sql, args: args})
	return pgconn.NewCommandTag("OK 1"), nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	// O repositório sempre chama Rollback via defer; depois do Commit o pgx
	// devolve ErrTxClosed e o chamador ignora. Só conta como rollback real
	// quando a transação ainda estava aberta.
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeDB struct {
	txs []*fakeTx
}

func (db *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	db.txs = append(db.txs, tx)
	return tx, nil
}

func (db *fakeDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func notaComItens(itens ...entity.NotaItem) *entity.NotaFiscal {
	return &entity.NotaFiscal{
		Numero:      "12345",
		DataEmissao: "2025-10-30T12:30:00-03:00",
		Emitente:    "EMPRESA TESTE LTDA",
		Valor:       decimal.RequireFromString("1678.44"),
		LogID:       "log-1",
		Itens:       itens,
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

// Gravar duas vezes a mesma nota tem de resultar em um único registro com a
// lista de itens mais recente: o cabeçalho entra por ON CONFLICT e os itens
// anteriores são apagados por inteiro antes da reinserção, tudo na mesma
// transação.
func TestNotaFiscalRepo_UpsertDuasVezesSubstituiItens(t *testing.T) {
	db := &fakeDB{}
	repo := postgres.NewNotaFiscalRepository(db)
	ctx := context.Background()

	primeira := notaComItens(
		entity.NotaItem{NItem: 1, Codigo: "ABC123"},
		entity.NotaItem{NItem: 2, Codigo: "XYZ789"},
	)
	require.NoError(t, repo.Upsert(ctx, primeira))

	segunda := notaComItens(entity.NotaItem{NItem: 1, Codigo: "NOVO1"})
	require.NoError(t, repo.Upsert(ctx, segunda))

	require.Len(t, db.txs, 2, "cada upsert abre exatamente uma transação")

	// Primeiro upsert: cabeçalho, limpeza, dois itens.
	tx1 := db.txs[0]
	require.Len(t, tx1.comandos, 4)
	assert.Contains(t, tx1.comandos[0].sql, "ON CONFLICT (numero) DO UPDATE",
		"reingestão do mesmo número é update, nunca segunda linha")
	assert.Contains(t, tx1.comandos[1].sql, "DELETE FROM nota_itens")
	assert.Contains(t, tx1.comandos[2].sql, "INSERT INTO nota_itens")
	assert.Contains(t, tx1.comandos[3].sql, "INSERT INTO nota_itens")
	assert.True(t, tx1.committed)
	assert.False(t, tx1.rolledBack)

	// Segundo upsert: o DELETE vem antes da reinserção, então a lista antiga
	// some por inteiro e só o item novo sobrevive.
	tx2 := db.txs[1]
	require.Len(t, tx2.comandos, 3)
	assert.Contains(t, tx2.comandos[0].sql, "ON CONFLICT (numero) DO UPDATE")
	assert.Contains(t, tx2.comandos[1].sql, "DELETE FROM nota_itens")
	assert.Equal(t, []any{"12345"}, tx2.comandos[1].args)
	assert.Contains(t, tx2.comandos[2].sql, "INSERT INTO nota_itens")
	assert.Equal(t, "NOVO1", tx2.comandos[2].args[2], "itens gravados são os da fonte mais recente")
	assert.True(t, tx2.committed)
	assert.False(t, tx2.rolledBack)
}

func TestNotaFiscalRepo_UpsertSemItensAindaLimpaLista(t *testing.T) {
	db := &fakeDB{}
	repo := postgres.NewNotaFiscalRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), notaComItens()))

	require.Len(t, db.txs, 1)
	tx := db.txs[0]
	require.Len(t, tx.comandos, 2)
	assert.Contains(t, tx.comandos[1].sql, "DELETE FROM nota_itens",
		"nota sem itens também descarta a lista anterior")
	assert.True(t, tx.committed)
}

func TestNotaFiscalRepo_UpsertPreencheTimestamps(t *testing.T) {
	db := &fakeDB{}
	repo := postgres.NewNotaFiscalRepository(db)

	nota := notaComItens()
	require.True(t, nota.CreatedAt.IsZero())
	require.NoError(t, repo.Upsert(context.Background(), nota))

	assert.False(t, nota.CreatedAt.IsZero())
	assert.False(t, nota.UpdatedAt.IsZero())

	criadoEm := nota.CreatedAt
	require.NoError(t, repo.Upsert(context.Background(), nota))
	assert.Equal(t, criadoEm, nota.CreatedAt, "CreatedAt não muda na reingestão")
}

// O número da nota, chave do conflito, viaja como primeiro argumento do
// cabeçalho: é ele que faz duas ingestões caírem na mesma linha.
func TestNotaFiscalRepo_NumeroEChaveDoUpsert(t *testing.T) {
	db := &fakeDB{}
	repo := postgres.NewNotaFiscalRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), notaComItens()))

	cabecalho := db.txs[0].comandos[0]
	assert.Equal(t, "12345", cabecalho.args[0])
	assert.True(t, strings.Contains(cabecalho.sql, "INSERT INTO notas_fiscais"))
}
