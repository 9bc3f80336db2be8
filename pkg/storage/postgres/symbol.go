package postgres

import (
	"context"
	"fmt"

	"flowrelay/internal/market"

	"gorm.io/gorm/clause"
)

// UpsertSymbols inserts the given configs, overwriting the trading rules of symbols already stored.
func (p *PostgresClient) UpsertSymbols(ctx context.Context, cfgs []market.SymbolConfig) error {
	if len(cfgs) == 0 {
		return nil
	}

	records := make([]SymbolRecord, 0, len(cfgs))
	for _, cfg := range cfgs {
		records = append(records, ToSymbolRecord(cfg))
	}

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).CreateInBatches(records, 200)
	if tx.Error != nil {
		return fmt.Errorf("upsert symbols: %w", tx.Error)
	}
	return nil
}

// ListSymbols returns every stored symbol ordered by name.
func (p *PostgresClient) ListSymbols(ctx context.Context) ([]market.SymbolConfig, error) {
	var records []SymbolRecord
	if err := p.DB.WithContext(ctx).Order("symbol").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	out := make([]market.SymbolConfig, 0, len(records))
	for _, r := range records {
		out = append(out, r.SymbolConfig())
	}
	return out, nil
}
