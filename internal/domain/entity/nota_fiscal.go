package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotaFiscal é o registro canônico de uma NF-e distribuída pela SEFAZ.
// Numero é a identidade global da nota (imutável após a criação): a chave de
// acesso de 44 dígitos garante unicidade entre contribuintes, então uma nova
// ingestão do mesmo número é sempre um update, nunca uma duplicata.
type NotaFiscal struct {
	Numero      string
	DataEmissao string // dhEmi como transmitido (RFC 3339 com offset); ordenação lexicográfica equivale à cronológica

	// Bloco de identificação (ide)
	CUF      string
	CNF      string
	NatOp    string
	Modelo   string
	Serie    string
	TpNF     string
	IDDest   string
	CMunFG   string
	TpImp    string
	TpEmis   string
	CDV      string
	TpAmb    string
	FinNFe   string
	IndFinal string
	IndPres  string
	ProcEmi  string
	VerProc  string

	// Emitente
	Emitente         string
	CNPJEmitente     string
	NomeFantasia     string
	IEEmitente       string
	CRTEmitente      string
	EnderecoEmitente string

	// Destinatário
	Destinatario         string
	DocDestinatario      string // CPF ou CNPJ
	IndIEDest            string
	EnderecoDestinatario string

	// Totais (ICMSTot)
	Valor      decimal.Decimal // vNF
	VBC        decimal.Decimal
	VICMS      decimal.Decimal
	VICMSDeson decimal.Decimal
	VFCP       decimal.Decimal
	VProd      decimal.Decimal

	// Transporte
	ModFrete               string
	Transportadora         string
	CNPJTransportadora     string
	EnderecoTransportadora string
	PlacaVeiculo           string
	UFVeiculo              string

	// LogID referencia a execução de ingestão que trouxe (ou atualizou) a nota.
	LogID string

	// Itens pertencem exclusivamente à nota: no upsert a lista anterior é
	// descartada por inteiro e substituída pela da fonte mais recente.
	Itens []NotaItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotaItem é uma linha de produto da nota. Não tem ciclo de vida próprio.
type NotaItem struct {
	NItem         int // nItem do det; duplicados são aceitos como vieram
	Codigo        string
	Descricao     string
	CFOP          string
	Unidade       string
	Quantidade    decimal.Decimal
	ValorUnitario decimal.Decimal
	ValorTotal    decimal.Decimal
}
