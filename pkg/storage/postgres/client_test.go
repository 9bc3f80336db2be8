package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"flowrelay/internal/market"
	"flowrelay/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	client, err := postgres.NewClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.AutoMigrateSymbolRecord())
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid.invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	assert.Error(t, err)
}

// go test -v --run ^TestSymbolRecordRoundTrip$
func TestSymbolRecordRoundTrip(t *testing.T) {
	cfg := market.SymbolConfig{
		Symbol:            "BTCUSDT",
		TickSize:          0.1,
		MinQuantity:       0.00001,
		QuantityPrecision: 5,
		PricePrecision:    1,
		BaseAsset:         "BTC",
		QuoteAsset:        "USDT",
	}

	assert.Equal(t, cfg, postgres.ToSymbolRecord(cfg).SymbolConfig())
	assert.Equal(t, "symbol_config", postgres.SymbolRecord{}.TableName())
}

// go test -v --run ^TestSymbolCRUD$
func TestSymbolCRUD(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, client.IsHealthy(ctx))

	cfgs := []market.SymbolConfig{
		{Symbol: "ZZTESTUSDT", TickSize: 0.01, MinQuantity: 1, PricePrecision: 2, BaseAsset: "ZZTEST", QuoteAsset: "USDT"},
		{Symbol: "ZYTESTUSDT", TickSize: 0.5, MinQuantity: 0.1, QuantityPrecision: 1, BaseAsset: "ZYTEST", QuoteAsset: "USDT"},
	}
	t.Cleanup(func() {
		client.DB.Where("symbol IN ?", []string{"ZZTESTUSDT", "ZYTESTUSDT"}).Delete(&postgres.SymbolRecord{})
	})
	require.NoError(t, client.UpsertSymbols(ctx, cfgs))

	// second upsert overwrites the tick size
	cfgs[0].TickSize = 0.001
	require.NoError(t, client.UpsertSymbols(ctx, cfgs[:1]))

	stored, err := client.ListSymbols(ctx)
	require.NoError(t, err)

	found := map[string]market.SymbolConfig{}
	for _, s := range stored {
		found[s.Symbol] = s
	}
	assert.Equal(t, cfgs[0], found["ZZTESTUSDT"])
	assert.Equal(t, cfgs[1], found["ZYTESTUSDT"])
}
