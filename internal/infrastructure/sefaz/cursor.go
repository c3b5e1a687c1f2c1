package sefaz

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// CursorZero é o NSU inicial do feed de distribuição.
const CursorZero = "000000000000000"

// CursorStore guarda o último NSU processado em um arquivo texto. O cursor é
// do feed inteiro (não por CNPJ) e estritamente não-decrescente: Advance
// ignora valores menores ou iguais e nunca volta atrás. Deve existir uma
// única instância por processo; o mutex serializa leitura e avanço.
type CursorStore struct {
	path string
	mu   sync.Mutex
}

// NewCursorStore constrói o store apontando para o arquivo do NSU.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Load devolve o cursor persistido, ou CursorZero se o arquivo não existir.
func (s *CursorStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CursorStore) load() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return CursorZero
	}
	nsu := strings.TrimSpace(string(data))
	if nsu == "" {
		return CursorZero
	}
	return nsu
}

// Advance persiste o novo NSU se (e somente se) ele for maior que o atual.
// Os NSU têm largura fixa com zeros à esquerda, então a comparação de string
// equivale à numérica.
func (s *CursorStore) Advance(nsu string) error {
	nsu = strings.TrimSpace(nsu)
	if nsu == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if nsu <= s.load() {
		return nil
	}
	if err := os.WriteFile(s.path, []byte(nsu), 0o644); err != nil {
		return fmt.Errorf("gravar cursor NSU: %w", err)
	}
	return nil
}
