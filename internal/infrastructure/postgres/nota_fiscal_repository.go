package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/domain/repository"
)

var _ repository.NotaFiscalRepository = (*NotaFiscalRepo)(nil)

// NotaFiscalRepo implementação de NotaFiscalRepository.
// Upsert abre sua própria transação: cabeçalho e itens mudam juntos ou nada muda.
type NotaFiscalRepo struct {
	db TxQuerier
}

// NewNotaFiscalRepository constrói o adaptador. Passar o pool (ou qualquer
// TxQuerier).
func NewNotaFiscalRepository(db TxQuerier) *NotaFiscalRepo {
	return &NotaFiscalRepo{db: db}
}

const notaColumns = `
	numero, data_emissao,
	c_uf, c_nf, nat_op, modelo, serie, tp_nf, id_dest, c_mun_fg, tp_imp, tp_emis,
	c_dv, tp_amb, fin_nfe, ind_final, ind_pres, proc_emi, ver_proc,
	emitente, cnpj_emitente, nome_fantasia, ie_emitente, crt_emitente, endereco_emitente,
	destinatario, doc_destinatario, ind_ie_dest, endereco_destinatario,
	valor, v_bc, v_icms, v_icms_deson, v_fcp, v_prod,
	mod_frete, transportadora, cnpj_transportadora, endereco_transportadora,
	placa_veiculo, uf_veiculo,
	log_id, created_at, updated_at`

// Upsert grava a nota por número. No conflito o cabeçalho é atualizado e a
// lista de itens anterior é apagada por inteiro antes de inserir a nova
// (substituição total, nunca merge). Tudo na mesma transação.
func (r *NotaFiscalRepo) Upsert(ctx context.Context, nota *entity.NotaFiscal) error {
	now := time.Now()
	if nota.CreatedAt.IsZero() {
		nota.CreatedAt = now
	}
	nota.UpdatedAt = now

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO notas_fiscais (` + notaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		        $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41,
		        $42, $43, $44)
		ON CONFLICT (numero) DO UPDATE SET
			data_emissao = EXCLUDED.data_emissao,
			c_uf = EXCLUDED.c_uf, c_nf = EXCLUDED.c_nf, nat_op = EXCLUDED.nat_op,
			modelo = EXCLUDED.modelo, serie = EXCLUDED.serie, tp_nf = EXCLUDED.tp_nf,
			id_dest = EXCLUDED.id_dest, c_mun_fg = EXCLUDED.c_mun_fg,
			tp_imp = EXCLUDED.tp_imp, tp_emis = EXCLUDED.tp_emis, c_dv = EXCLUDED.c_dv,
			tp_amb = EXCLUDED.tp_amb, fin_nfe = EXCLUDED.fin_nfe,
			ind_final = EXCLUDED.ind_final, ind_pres = EXCLUDED.ind_pres,
			proc_emi = EXCLUDED.proc_emi, ver_proc = EXCLUDED.ver_proc,
			emitente = EXCLUDED.emitente, cnpj_emitente = EXCLUDED.cnpj_emitente,
			nome_fantasia = EXCLUDED.nome_fantasia, ie_emitente = EXCLUDED.ie_emitente,
			crt_emitente = EXCLUDED.crt_emitente, endereco_emitente = EXCLUDED.endereco_emitente,
			destinatario = EXCLUDED.destinatario, doc_destinatario = EXCLUDED.doc_destinatario,
			ind_ie_dest = EXCLUDED.ind_ie_dest, endereco_destinatario = EXCLUDED.endereco_destinatario,
			valor = EXCLUDED.valor, v_bc = EXCLUDED.v_bc, v_icms = EXCLUDED.v_icms,
			v_icms_deson = EXCLUDED.v_icms_deson, v_fcp = EXCLUDED.v_fcp, v_prod = EXCLUDED.v_prod,
			mod_frete = EXCLUDED.mod_frete, transportadora = EXCLUDED.transportadora,
			cnpj_transportadora = EXCLUDED.cnpj_transportadora,
			endereco_transportadora = EXCLUDED.endereco_transportadora,
			placa_veiculo = EXCLUDED.placa_veiculo, uf_veiculo = EXCLUDED.uf_veiculo,
			log_id = EXCLUDED.log_id, updated_at = EXCLUDED.updated_at`
	_, err = tx.Exec(ctx, query,
		nota.Numero, nota.DataEmissao,
		nota.CUF, nota.CNF, nota.NatOp, nota.Modelo, nota.Serie, nota.TpNF,
		nota.IDDest, nota.CMunFG, nota.TpImp, nota.TpEmis,
		nota.CDV, nota.TpAmb, nota.FinNFe, nota.IndFinal, nota.IndPres,
		nota.ProcEmi, nota.VerProc,
		nota.Emitente, nota.CNPJEmitente, nota.NomeFantasia, nota.IEEmitente,
		nota.CRTEmitente, nota.EnderecoEmitente,
		nota.Destinatario, nota.DocDestinatario, nota.IndIEDest, nota.EnderecoDestinatario,
		nota.Valor, nota.VBC, nota.VICMS, nota.VICMSDeson, nota.VFCP, nota.VProd,
		nota.ModFrete, nota.Transportadora, nota.CNPJTransportadora,
		nota.EnderecoTransportadora, nota.PlacaVeiculo, nota.UFVeiculo,
		nota.LogID, nota.CreatedAt, nota.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert nota %s: %w", nota.Numero, err)
	}

	// Substituição total da lista de itens: o que está no banco é sempre
	// exatamente o que a fonte autoritativa mais recente declarou.
	if _, err := tx.Exec(ctx, `DELETE FROM nota_itens WHERE numero_nota = $1`, nota.Numero); err != nil {
		return fmt.Errorf("delete itens da nota %s: %w", nota.Numero, err)
	}
	for _, item := range nota.Itens {
		_, err := tx.Exec(ctx, `
			INSERT INTO nota_itens (numero_nota, n_item, codigo, descricao, cfop, unidade, quantidade, valor_unitario, valor_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			nota.Numero, item.NItem, item.Codigo, item.Descricao, item.CFOP,
			item.Unidade, item.Quantidade, item.ValorUnitario, item.ValorTotal,
		)
		if err != nil {
			return fmt.Errorf("insert item %d da nota %s: %w", item.NItem, nota.Numero, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListByCNPJ devolve as notas vinculadas a logs do CNPJ, da mais recente para
// a mais antiga por data de emissão. Não carrega itens (leitura do fallback).
func (r *NotaFiscalRepo) ListByCNPJ(ctx context.Context, cnpj string) ([]*entity.NotaFiscal, error) {
	query := `
		SELECT ` + notaColumns + `
		FROM notas_fiscais n
		WHERE n.log_id IN (SELECT id FROM nfe_logs WHERE cnpj = $1)
		ORDER BY n.data_emissao DESC`
	rows, err := r.db.Query(ctx, query, cnpj)
	if err != nil {
		return nil, fmt.Errorf("list notas: %w", err)
	}
	defer rows.Close()

	var list []*entity.NotaFiscal
	for rows.Next() {
		nota, err := scanNota(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, nota)
	}
	return list, rows.Err()
}

// GetByNumero devolve a nota completa com itens, ou nil se não existir.
func (r *NotaFiscalRepo) GetByNumero(ctx context.Context, numero string) (*entity.NotaFiscal, error) {
	query := `SELECT ` + notaColumns + ` FROM notas_fiscais WHERE numero = $1`
	row := r.db.QueryRow(ctx, query, numero)
	nota, err := scanNota(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT n_item, codigo, descricao, cfop, unidade, quantidade, valor_unitario, valor_total
		FROM nota_itens WHERE numero_nota = $1 ORDER BY id`, numero)
	if err != nil {
		return nil, fmt.Errorf("list itens da nota %s: %w", numero, err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it entity.NotaItem
		if err := itemRows.Scan(&it.NItem, &it.Codigo, &it.Descricao, &it.CFOP,
			&it.Unidade, &it.Quantidade, &it.ValorUnitario, &it.ValorTotal); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		nota.Itens = append(nota.Itens, it)
	}
	return nota, itemRows.Err()
}

func scanNota(row pgx.Row) (*entity.NotaFiscal, error) {
	var n entity.NotaFiscal
	err := row.Scan(
		&n.Numero, &n.DataEmissao,
		&n.CUF, &n.CNF, &n.NatOp, &n.Modelo, &n.Serie, &n.TpNF, &n.IDDest,
		&n.CMunFG, &n.TpImp, &n.TpEmis,
		&n.CDV, &n.TpAmb, &n.FinNFe, &n.IndFinal, &n.IndPres, &n.ProcEmi, &n.VerProc,
		&n.Emitente, &n.CNPJEmitente, &n.NomeFantasia, &n.IEEmitente,
		&n.CRTEmitente, &n.EnderecoEmitente,
		&n.Destinatario, &n.DocDestinatario, &n.IndIEDest, &n.EnderecoDestinatario,
		&n.Valor, &n.VBC, &n.VICMS, &n.VICMSDeson, &n.VFCP, &n.VProd,
		&n.ModFrete, &n.Transportadora, &n.CNPJTransportadora,
		&n.EnderecoTransportadora, &n.PlacaVeiculo, &n.UFVeiculo,
		&n.LogID, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan nota: %w", err)
	}
	return &n, nil
}
