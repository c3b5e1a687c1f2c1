package entity

import "time"

// NfeLog é o registro de auditoria de uma rodada de consulta à SEFAZ (ou ao
// seu substituto simulado). Append-only: nunca é alterado após a criação.
// Também ancora o caminho de fallback (log mais recente por CNPJ).
type NfeLog struct {
	ID         string
	CNPJ       string
	CStat      string
	XMotivo    string
	UltNSU     string
	TpAmb      string // "1" produção, "2" homologação
	XMLEnviado string // payload XML enviado (nfeDadosMsg)
	SoapRaw    string // resposta SOAP bruta
	CreatedAt  time.Time
}
