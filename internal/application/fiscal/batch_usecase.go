package fiscal

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/construtech/nfe-sync-api/internal/domain"
	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/domain/repository"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
	"github.com/construtech/nfe-sync-api/pkg/logger"
)

// chaveAcessoRe valida uma chave de acesso de NF-e (44 dígitos).
var chaveAcessoRe = regexp.MustCompile(`^[0-9]{44}$`)

// maxConsultasSimultaneas limita as consultas concorrentes à SEFAZ por lote.
const maxConsultasSimultaneas = 4

// BatchUseCase resolve lotes de chaves de acesso vindas de planilhas XLSX,
// consultando a situação de cada chave e gravando as aceitas no banco.
type BatchUseCase struct {
	notaRepo   repository.NotaFiscalRepository
	logRepo    repository.NfeLogRepository
	transporte sefaz.Transport
	log        *logger.Logger
}

// NewBatchUseCase constrói o caso de uso de lote.
func NewBatchUseCase(
	notaRepo repository.NotaFiscalRepository,
	logRepo repository.NfeLogRepository,
	transporte sefaz.Transport,
	log *logger.Logger,
) *BatchUseCase {
	return &BatchUseCase{
		notaRepo:   notaRepo,
		logRepo:    logRepo,
		transporte: transporte,
		log:        log,
	}
}

// ResultadoLote resume o processamento de uma planilha.
type ResultadoLote struct {
	Processadas int              `json:"processadas"`
	Sucesso     int              `json:"sucesso"`
	Erro        int              `json:"erro"`
	Resultados  []ResultadoChave `json:"resultados"`
}

// ExtrairChaves lê a primeira aba da planilha e devolve toda célula cujo
// conteúdo é uma chave de acesso válida, na ordem em que aparece.
func ExtrairChaves(planilha []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(planilha))
	if err != nil {
		return nil, fmt.Errorf("%w: planilha ilegível: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	abas := f.GetSheetList()
	if len(abas) == 0 {
		return nil, fmt.Errorf("%w: planilha sem abas", domain.ErrInvalidInput)
	}
	linhas, err := f.GetRows(abas[0])
	if err != nil {
		return nil, fmt.Errorf("%w: ler planilha: %v", domain.ErrInvalidInput, err)
	}

	var chaves []string
	for _, linha := range linhas {
		for _, celula := range linha {
			if chaveAcessoRe.MatchString(celula) {
				chaves = append(chaves, celula)
			}
		}
	}
	return chaves, nil
}

// ProcessarLote extrai as chaves da planilha e consulta cada uma na SEFAZ,
// com no máximo maxConsultasSimultaneas chamadas em voo. Falha em uma chave
// fica registrada no resultado dela e não interrompe as demais.
func (uc *BatchUseCase) ProcessarLote(ctx context.Context, in Entrada, planilha []byte) (*ResultadoLote, error) {
	chaves, err := ExtrairChaves(planilha)
	if err != nil {
		return nil, err
	}

	resultados := make([]ResultadoChave, len(chaves))
	lote := &loteLog{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConsultasSimultaneas)
	for i, chave := range chaves {
		i, chave := i, chave
		g.Go(func() error {
			resultados[i] = uc.resolverChave(gctx, in, chave, lote)
			return nil
		})
	}
	// Nenhuma goroutine devolve erro; Wait só sincroniza.
	_ = g.Wait()

	resumo := &ResultadoLote{Processadas: len(chaves), Resultados: resultados}
	for _, r := range resultados {
		if r.Erro == "" {
			resumo.Sucesso++
		} else {
			resumo.Erro++
		}
	}
	return resumo, nil
}

// loteLog guarda o log de ingestão do lote. O primeiro worker que precisar
// resolve (ou cria) o log sob o mutex; os demais reutilizam o mesmo ID, então
// um lote nunca gera mais de um log novo.
type loteLog struct {
	mu sync.Mutex
	id string
}

// resolverLog devolve o ID do log de ingestão do lote: o mais recente do
// CNPJ, ou um log mínimo criado uma única vez se nenhum existir.
func (uc *BatchUseCase) resolverLog(ctx context.Context, in Entrada, ret *sefaz.RetConsSit, lote *loteLog) (string, error) {
	lote.mu.Lock()
	defer lote.mu.Unlock()
	if lote.id != "" {
		return lote.id, nil
	}

	cnpj := sefaz.SomenteDigitos(in.CNPJ)
	runLog, err := uc.logRepo.FindLatestByCNPJ(ctx, cnpj)
	if err != nil {
		return "", err
	}
	if runLog == nil {
		runLog = &entity.NfeLog{
			CNPJ:    cnpj,
			CStat:   ret.CStat,
			XMotivo: ret.XMotivo,
			TpAmb:   in.TpAmb,
		}
		if err := uc.logRepo.Create(ctx, runLog); err != nil {
			return "", err
		}
	}
	lote.id = runLog.ID
	return lote.id, nil
}

// resolverChave consulta a situação de uma chave e, quando aceita, grava a
// nota mínima atrelada ao log de ingestão do lote.
func (uc *BatchUseCase) resolverChave(ctx context.Context, in Entrada, chave string, lote *loteLog) ResultadoChave {
	res := ResultadoChave{Chave: chave}

	req, err := sefaz.BuildConsultaChave(in.TpAmb, chave)
	if err != nil {
		res.Erro = err.Error()
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, timeoutSefaz)
	defer cancel()
	soapRaw, err := uc.transporte.Post(callCtx, req, sefaz.Credenciais{PFX: in.Certificado, Senha: in.Senha})
	if err != nil {
		res.Erro = err.Error()
		return res
	}

	ret, err := sefaz.DecodeRetConsSit(soapRaw)
	if err != nil {
		res.Erro = "retConsSitNFe ausente no retorno da SEFAZ"
		return res
	}
	res.CStat = ret.CStat
	res.XMotivo = ret.XMotivo
	res.DhRecbto = ret.DhRecbto

	if !sefaz.StatusAceitos[ret.CStat] {
		res.Erro = ret.XMotivo
		return res
	}

	logID, err := uc.resolverLog(ctx, in, ret, lote)
	if err != nil {
		res.Erro = err.Error()
		return res
	}

	numero := ret.ChNFe
	if numero == "" {
		numero = chave
	}
	nota := &entity.NotaFiscal{
		Numero:      numero,
		DataEmissao: ret.DhRecbto,
		Emitente:    "Emitente não identificado",
		LogID:       logID,
	}
	if err := uc.notaRepo.Upsert(ctx, nota); err != nil {
		res.Erro = err.Error()
		return res
	}
	return res
}
