package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound             = errors.New("recurso não encontrado")
	ErrInvalidInput         = errors.New("entrada inválida")
	ErrUFNaoSuportada       = errors.New("UF não suportada")
	ErrCertificadoAusente   = errors.New("certificado digital (.pfx) não enviado")
	ErrArquivoAusente       = errors.New("arquivo XLSX não enviado")
	ErrRespostaSefazAusente = errors.New("elemento de resposta ausente no retorno SOAP da SEFAZ")
	ErrNotaSemIdentificacao = errors.New("documento sem bloco de identificação (infNFe/ide)")
)
