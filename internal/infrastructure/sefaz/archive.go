package sefaz

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// ArchiveWriter grava cada XML bruto recebido da distribuição em disco.
// O arquivo nasce com nome temporário e é renomeado para o número da nota
// assim que conhecido; a renomeação é melhor esforço.
type ArchiveWriter struct {
	dir string
}

// NewArchiveWriter constrói o writer. O diretório é criado no primeiro Save.
func NewArchiveWriter(dir string) *ArchiveWriter {
	return &ArchiveWriter{dir: dir}
}

// Save grava o corpo XML sob um nome temporário único e devolve o caminho.
func (w *ArchiveWriter) Save(xmlBody []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("criar diretório de XMLs: %w", err)
	}
	nome := fmt.Sprintf("nfe-%d-%04d.xml", time.Now().UnixMilli(), rand.Intn(10000))
	caminho := filepath.Join(w.dir, nome)
	if err := os.WriteFile(caminho, xmlBody, 0o644); err != nil {
		return "", fmt.Errorf("gravar XML: %w", err)
	}
	return caminho, nil
}

// Rename troca o nome temporário por nfe-<numero>.xml. Devolve o caminho
// final, ou o original se a renomeação falhar (o chamador apenas loga).
func (w *ArchiveWriter) Rename(caminho, numero string) (string, error) {
	if numero == "" {
		return caminho, nil
	}
	novo := filepath.Join(w.dir, "nfe-"+numero+".xml")
	if err := os.Rename(caminho, novo); err != nil {
		return caminho, fmt.Errorf("renomear XML: %w", err)
	}
	return novo, nil
}
