package sefaz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construtech/nfe-sync-api/internal/infrastructure/sefaz"
)

// O transporte simulado fecha o ciclo completo: a resposta que ele fabrica
// tem de passar inteira pelo decodificador e pelo normalizador reais.
func TestMockTransport_CicloDistribuicao(t *testing.T) {
	req, err := sefaz.BuildDistribuicao("1", "SP", "12345678000100", sefaz.CursorZero)
	require.NoError(t, err)

	soap, err := sefaz.NewMockTransport().Post(context.Background(), req, sefaz.Credenciais{})
	require.NoError(t, err)

	ret, err := sefaz.DecodeRetDistDFe(soap)
	require.NoError(t, err)
	assert.Equal(t, "138", ret.CStat)
	assert.Equal(t, sefaz.MockUltNSU, ret.UltNSU)
	require.Len(t, ret.Docs, 1)
	require.NoError(t, ret.Docs[0].Err)

	nota, err := sefaz.NormalizarNota(ret.Docs[0].XML)
	require.NoError(t, err)
	assert.Equal(t, "12345", nota.Numero)
	assert.Len(t, nota.Itens, 2)
}

func TestMockTransport_CicloConsultaChave(t *testing.T) {
	chave := "35191111111111111111550010000012341000012345"
	req, err := sefaz.BuildConsultaChave("2", chave)
	require.NoError(t, err)

	soap, err := sefaz.NewMockTransport().Post(context.Background(), req, sefaz.Credenciais{})
	require.NoError(t, err)

	ret, err := sefaz.DecodeRetConsSit(soap)
	require.NoError(t, err)
	assert.Equal(t, "100", ret.CStat)
	assert.Equal(t, chave, ret.ChNFe, "a consulta ecoa a chave pedida")
	assert.NotEmpty(t, ret.DhRecbto)
}
