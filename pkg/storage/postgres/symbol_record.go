package postgres

import (
	"time"

	"flowrelay/internal/market"
)

// SymbolRecord is the persisted trading rule set of one symbol.
type SymbolRecord struct {
	Symbol            string  `gorm:"primaryKey;type:varchar(32)"`
	TickSize          float64 `gorm:"type:numeric;not null"`
	MinQuantity       float64 `gorm:"type:numeric;not null"`
	QuantityPrecision int     `gorm:"not null"`
	PricePrecision    int     `gorm:"not null"`
	BaseAsset         string  `gorm:"type:varchar(16);not null;index:idx_symbol_quote"`
	QuoteAsset        string  `gorm:"type:varchar(16);not null;index:idx_symbol_quote"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (SymbolRecord) TableName() string {
	return "symbol_config"
}

func ToSymbolRecord(cfg market.SymbolConfig) SymbolRecord {
	return SymbolRecord{
		Symbol:            cfg.Symbol,
		TickSize:          cfg.TickSize,
		MinQuantity:       cfg.MinQuantity,
		QuantityPrecision: cfg.QuantityPrecision,
		PricePrecision:    cfg.PricePrecision,
		BaseAsset:         cfg.BaseAsset,
		QuoteAsset:        cfg.QuoteAsset,
	}
}

func (r SymbolRecord) SymbolConfig() market.SymbolConfig {
	return market.SymbolConfig{
		Symbol:            r.Symbol,
		TickSize:          r.TickSize,
		MinQuantity:       r.MinQuantity,
		QuantityPrecision: r.QuantityPrecision,
		PricePrecision:    r.PricePrecision,
		BaseAsset:         r.BaseAsset,
		QuoteAsset:        r.QuoteAsset,
	}
}
