package holdings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
)

const exportCSV = `ticker,exchange,btc,cost_basis,last_disclosed,source_url,region
1357.HK,HKEX,2000,180000000,2025-03-14,https://www1.hkexnews.hk/a.pdf,APAC
3350.T,TSE,,,,,APAC
MSTR,NASDAQ,499096,33100000000,2025-03-31,https://example.com/mstr,NA

1357.HK,SEHK,2500,,14/04/2025,,APAC
BAD,NYSE,-5,,,,NA
`

func TestImporter_Import(t *testing.T) {
	f := newFixture()
	im := NewImporter(f.registry, f.service, logger.Discard())
	ctx := context.Background()

	res, err := im.Import(ctx, strings.NewReader(exportCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 2, res.EntitiesCreated)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Equal(t, 7, res.Errors[1].Line)

	hk, err := f.registry.GetByTicker(ctx, "1357", domain.VenueHKEX)
	require.NoError(t, err)
	assert.Equal(t, "01357", hk.Ticker)
	assert.Equal(t, "APAC", hk.Region)

	rows, err := f.service.Latest(ctx, "APAC")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	snap := rows[0].Snapshot
	assert.Equal(t, "2500", snap.BTC.String())
	assert.Equal(t, domain.OriginBulkExport, snap.Origin)
	require.NotNil(t, snap.LastDisclosed)
	assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), *snap.LastDisclosed)
	assert.Nil(t, snap.CostBasisUSD)

	deltas, err := f.service.ComputeDeltas(ctx, []string{hk.ID})
	require.NoError(t, err)
	require.NotNil(t, deltas[hk.ID])
	assert.Equal(t, "500", deltas[hk.ID].String())
}

func TestImporter_MissingColumn(t *testing.T) {
	f := newFixture()
	im := NewImporter(f.registry, f.service, nil)

	_, err := im.Import(context.Background(), strings.NewReader("ticker,btc\nMSTR,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange")
}
