package fiscal

// CursorStore é o porto do cursor NSU (valor único, não-decrescente).
type CursorStore interface {
	Load() string
	Advance(nsu string) error
}

// Archiver é o porto do arquivamento de XMLs brutos em disco.
type Archiver interface {
	Save(xmlBody []byte) (string, error)
	Rename(caminho, numero string) (string, error)
}
