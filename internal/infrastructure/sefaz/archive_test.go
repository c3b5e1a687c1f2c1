package sefaz_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
)

func TestArchiveWriter_SaveERename(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "xmls")
	w := sefaz.NewArchiveWriter(dir)

	caminho, err := w.Save([]byte("<nfeProc/>"))
	require.NoError(t, err, "Save cria o diretório na primeira gravação")
	assert.True(t, strings.HasPrefix(filepath.Base(caminho), "nfe-"))

	conteudo, err := os.ReadFile(caminho)
	require.NoError(t, err)
	assert.Equal(t, "<nfeProc/>", string(conteudo))

	final, err := w.Rename(caminho, "12345")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nfe-12345.xml"), final)

	_, err = os.Stat(caminho)
	assert.True(t, os.IsNotExist(err), "nome temporário some após o rename")
}

func TestArchiveWriter_RenameSemNumero(t *testing.T) {
	w := sefaz.NewArchiveWriter(t.TempDir())
	caminho, err := w.Save([]byte("<x/>"))
	require.NoError(t, err)

	final, err := w.Rename(caminho, "")
	require.NoError(t, err)
	assert.Equal(t, caminho, final, "sem número a nota fica com o nome temporário")
}

func TestArchiveWriter_RenameFalhaDevolveOriginal(t *testing.T) {
	w := sefaz.NewArchiveWriter(t.TempDir())
	final, err := w.Rename(filepath.Join(t.TempDir(), "inexistente.xml"), "99")
	assert.Error(t, err)
	assert.Contains(t, final, "inexistente.xml", "falha de rename preserva o caminho original")
}
