package csv

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `Date,Description,Merchant,Amount,Account
2024-01-05,NETFLIX.COM SUBSCRIPTION,Netflix,-15.99,checking-1
2024-01-12,"GROCERY, DOWNTOWN",Whole Foods,"82.45",checking-1
`
	importer := NewImporter()
	txns, err := importer.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	netflix := txns[0]
	assert.True(t, netflix.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "NETFLIX.COM SUBSCRIPTION", netflix.Name)
	assert.Equal(t, "Netflix", netflix.MerchantName)
	assert.InDelta(t, 15.99, netflix.Amount, 0.001, "debits are stored as magnitudes")
	assert.Equal(t, "checking-1", netflix.AccountID)
	assert.True(t, netflix.Processed)
	assert.NotEmpty(t, netflix.ID)
	assert.NotEmpty(t, netflix.Hash)

	grocery := txns[1]
	assert.Equal(t, "GROCERY, DOWNTOWN", grocery.Name)
	assert.InDelta(t, 82.45, grocery.Amount, 0.001)
}

func TestParseHeaderAliases(t *testing.T) {
	input := `Posting Date,Details,Payee,Value
01/05/2024,Spotify payment,Spotify,$9.99
`
	txns, err := NewImporter().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Spotify", txns[0].MerchantName)
	assert.InDelta(t, 9.99, txns[0].Amount, 0.001)
	assert.True(t, txns[0].Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestParseErrors(t *testing.T) {
	importer := NewImporter()

	t.Run("missing required column", func(t *testing.T) {
		_, err := importer.Parse(strings.NewReader("Date,Description\n2024-01-05,x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount")
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := importer.Parse(strings.NewReader("Date,Description,Amount\nyesterday,x,1.00\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("bad amount", func(t *testing.T) {
		_, err := importer.Parse(strings.NewReader("Date,Description,Amount\n2024-01-05,x,lots\n"))
		assert.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		txns, err := importer.Parse(strings.NewReader("Date,Description,Amount\n"))
		require.NoError(t, err)
		assert.Empty(t, txns)
	})
}
