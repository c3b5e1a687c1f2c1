package fiscal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/construtech/nfe-sync-api/internal/domain/entity"
	"github.com/construtech/nfe-sync-api/internal/domain/repository"
	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
	"github.com/construtech/nfe-sync-api/pkg/logger"
)

const timeoutSefaz = 40 * time.Second

// SyncUseCase orquestra o ciclo de distribuição de NF-e: monta o distDFeInt
// a partir do cursor, chama a SEFAZ via mTLS, descompacta o lote, normaliza
// cada documento e grava tudo no banco. Falha de transporte ou ausência de
// documentos novos degrada para as notas já persistidas; o caminho
// incremental nunca devolve erro de transporte ao chamador. O mutex admite
// uma única sincronização por vez, o cursor é estado mutável do processo.
type SyncUseCase struct {
	notaRepo   repository.NotaFiscalRepository
	logRepo    repository.NfeLogRepository
	transporte sefaz.Transport
	cursor     CursorStore
	arquivo    Archiver
	log        *logger.Logger

	mu sync.Mutex
}

// NewSyncUseCase constrói o caso de uso com todas as dependências.
func NewSyncUseCase(
	notaRepo repository.NotaFiscalRepository,
	logRepo repository.NfeLogRepository,
	transporte sefaz.Transport,
	cursor CursorStore,
	arquivo Archiver,
	log *logger.Logger,
) *SyncUseCase {
	return &SyncUseCase{
		notaRepo:   notaRepo,
		logRepo:    logRepo,
		transporte: transporte,
		cursor:     cursor,
		arquivo:    arquivo,
		log:        log,
	}
}

// Entrada são as credenciais de uma consulta à SEFAZ.
type Entrada struct {
	CNPJ        string
	Senha       string
	Certificado []byte // conteúdo do .pfx
	UF          string // sigla ou código IBGE
	TpAmb       string // "1" produção, "2" homologação
}

// Relatorio acumula o diagnóstico de uma rodada (devolvido ao chamador).
type Relatorio struct {
	Endpoint    string   `json:"endpoint,omitempty"`
	UF          string   `json:"uf,omitempty"`
	TpAmb       string   `json:"tpAmb,omitempty"`
	CStat       string   `json:"cStat,omitempty"`
	XMotivo     string   `json:"xMotivo,omitempty"`
	UltNSU      string   `json:"ultNSU,omitempty"`
	Fallback    string   `json:"fallback,omitempty"`
	XMLSalvos   []string `json:"xmlSalvos,omitempty"`
	ErrosDocZip []string `json:"errosDocZip,omitempty"`
	TotalNotas  int      `json:"totalNotas"`
}

// ResultadoSync é a resposta da sincronização incremental.
type ResultadoSync struct {
	Notas     []*entity.NotaFiscal `json:"notas"`
	Relatorio *Relatorio           `json:"logs"`
}

// Sincronizar executa a consulta incremental por NSU. Só devolve erro para
// entrada inválida (UF desconhecida); qualquer falha de protocolo ou
// transporte resulta em fallback com o motivo anotado no relatório.
func (uc *SyncUseCase) Sincronizar(ctx context.Context, in Entrada) (*ResultadoSync, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	cnpj := sefaz.SomenteDigitos(in.CNPJ)

	req, err := sefaz.BuildDistribuicao(in.TpAmb, in.UF, cnpj, uc.cursor.Load())
	if err != nil {
		return nil, err
	}
	rel := &Relatorio{Endpoint: req.URL, UF: in.UF, TpAmb: in.TpAmb}

	callCtx, cancel := context.WithTimeout(ctx, timeoutSefaz)
	defer cancel()
	soapRaw, err := uc.transporte.Post(callCtx, req, sefaz.Credenciais{PFX: in.Certificado, Senha: in.Senha})
	if err != nil {
		return uc.fallback(ctx, cnpj, rel, err.Error()), nil
	}

	ret, err := sefaz.DecodeRetDistDFe(soapRaw)
	if err != nil {
		// Sem elemento de protocolo não há posição de feed: o cursor não anda.
		return uc.fallback(ctx, cnpj, rel, "retDistDFeInt ausente na resposta SOAP"), nil
	}

	rel.CStat = ret.CStat
	rel.XMotivo = ret.XMotivo
	rel.UltNSU = ret.UltNSU

	// O cursor reflete a posição no feed, não o desfecho dos documentos:
	// avança sempre que a resposta declarou ultNSU, com qualquer cStat.
	if err := uc.cursor.Advance(ret.UltNSU); err != nil {
		uc.log.Warn().Err(err).Msg("falha ao avançar cursor NSU")
	}

	runLog := &entity.NfeLog{
		CNPJ:       cnpj,
		CStat:      ret.CStat,
		XMotivo:    ret.XMotivo,
		UltNSU:     ret.UltNSU,
		TpAmb:      in.TpAmb,
		XMLEnviado: req.DadosMsg,
		SoapRaw:    string(soapRaw),
	}
	if err := uc.logRepo.Create(ctx, runLog); err != nil {
		return uc.fallback(ctx, cnpj, rel, "gravar log de ingestão: "+err.Error()), nil
	}

	if ret.CStat != sefaz.CStatDocumentosLocalizados {
		// Ausência de documentos novos é regime normal do feed, não falha.
		return uc.fallback(ctx, cnpj, rel, fmt.Sprintf("nenhum documento novo (cStat %s: %s)", ret.CStat, ret.XMotivo)), nil
	}

	notas := uc.processarLote(ctx, ret.Docs, runLog.ID, rel)
	rel.TotalNotas = len(notas)
	return &ResultadoSync{Notas: notas, Relatorio: rel}, nil
}

// processarLote descompacta, arquiva, normaliza e grava cada entrada do lote.
// Falha em uma entrada é registrada e pulada; as demais seguem.
func (uc *SyncUseCase) processarLote(ctx context.Context, docs []sefaz.DocZip, logID string, rel *Relatorio) []*entity.NotaFiscal {
	var notas []*entity.NotaFiscal
	for _, doc := range docs {
		if doc.Err != nil {
			rel.ErrosDocZip = append(rel.ErrosDocZip, fmt.Sprintf("NSU %s: %v", doc.NSU, doc.Err))
			continue
		}

		caminho, err := uc.arquivo.Save(doc.XML)
		if err != nil {
			uc.log.Warn().Err(err).Str("nsu", doc.NSU).Msg("falha ao arquivar XML")
		}

		nota, err := sefaz.NormalizarNota(doc.XML)
		if err != nil {
			rel.ErrosDocZip = append(rel.ErrosDocZip, fmt.Sprintf("NSU %s: %v", doc.NSU, err))
			continue
		}

		if caminho != "" {
			final, err := uc.arquivo.Rename(caminho, nota.Numero)
			if err != nil {
				uc.log.Warn().Err(err).Str("numero", nota.Numero).Msg("falha ao renomear XML arquivado")
			}
			rel.XMLSalvos = append(rel.XMLSalvos, final)
		}

		nota.LogID = logID
		if err := uc.notaRepo.Upsert(ctx, nota); err != nil {
			rel.ErrosDocZip = append(rel.ErrosDocZip, fmt.Sprintf("nota %s: %v", nota.Numero, err))
			continue
		}
		notas = append(notas, nota)
	}
	return notas
}

// fallback devolve as notas já persistidas do CNPJ (mais recentes primeiro)
// com o motivo anotado no relatório. Nunca propaga erro.
func (uc *SyncUseCase) fallback(ctx context.Context, cnpj string, rel *Relatorio, motivo string) *ResultadoSync {
	rel.Fallback = motivo
	notas, err := uc.notaRepo.ListByCNPJ(ctx, cnpj)
	if err != nil {
		uc.log.Error().Err(err).Str("cnpj", cnpj).Msg("fallback: leitura do banco falhou")
		notas = nil
	}
	rel.TotalNotas = len(notas)
	return &ResultadoSync{Notas: notas, Relatorio: rel}
}

// ── Consulta por chave de acesso ──────────────────────────────────────────────

// ResultadoChave é a resposta da consulta de situação de uma chave.
type ResultadoChave struct {
	Chave    string `json:"chave"`
	CStat    string `json:"cStat,omitempty"`
	XMotivo  string `json:"xMotivo,omitempty"`
	DhRecbto string `json:"dhRecbto,omitempty"`
	Erro     string `json:"erro,omitempty"`
}

// ConsultarChave consulta a situação de uma chave de acesso e, quando o
// status é aceito, grava a nota mínima atrelada ao log da rodada. Erros de
// transporte ou protocolo voltam estruturados no resultado, nunca como panic.
func (uc *SyncUseCase) ConsultarChave(ctx context.Context, in Entrada, chave string) (*ResultadoChave, error) {
	res := &ResultadoChave{Chave: chave}

	req, err := sefaz.BuildConsultaChave(in.TpAmb, chave)
	if err != nil {
		res.Erro = err.Error()
		return res, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeoutSefaz)
	defer cancel()
	cnpj := sefaz.SomenteDigitos(in.CNPJ)
	soapRaw, err := uc.transporte.Post(callCtx, req, sefaz.Credenciais{PFX: in.Certificado, Senha: in.Senha})
	if err != nil {
		res.Erro = err.Error()
		return res, nil
	}

	ret, err := sefaz.DecodeRetConsSit(soapRaw)
	if err != nil {
		res.Erro = "retConsSitNFe ausente no retorno da SEFAZ"
		return res, nil
	}
	res.CStat = ret.CStat
	res.XMotivo = ret.XMotivo
	res.DhRecbto = ret.DhRecbto

	runLog := &entity.NfeLog{
		CNPJ:       cnpj,
		CStat:      ret.CStat,
		XMotivo:    ret.XMotivo,
		TpAmb:      in.TpAmb,
		XMLEnviado: req.DadosMsg,
		SoapRaw:    string(soapRaw),
	}
	if err := uc.logRepo.Create(ctx, runLog); err != nil {
		res.Erro = err.Error()
		return res, nil
	}

	if !sefaz.StatusAceitos[ret.CStat] {
		res.Erro = ret.XMotivo
		return res, nil
	}

	numero := ret.ChNFe
	if numero == "" {
		numero = chave
	}
	nota := &entity.NotaFiscal{
		Numero:      numero,
		DataEmissao: ret.DhRecbto,
		Emitente:    "Emitente não identificado",
		LogID:       runLog.ID,
	}
	if err := uc.notaRepo.Upsert(ctx, nota); err != nil {
		res.Erro = err.Error()
		return res, nil
	}
	return res, nil
}
