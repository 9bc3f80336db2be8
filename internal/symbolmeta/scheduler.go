package symbolmeta

import (
	"context"
	"time"

	"flowrelay/internal/market"
	"flowrelay/internal/snapshot"

	"go.uber.org/zap"
)

// MidnightLoader refreshes symbol metadata at every UTC midnight.
type MidnightLoader struct {
	Load   func(ctx context.Context) <-chan market.SymbolConfig
	Logger *zap.Logger
}

func DefaultLoadFn(loader *snapshot.SymbolLoader) func(ctx context.Context) <-chan market.SymbolConfig {
	return func(ctx context.Context) <-chan market.SymbolConfig {
		symbolCh := make(chan market.SymbolConfig, 100)

		go func() {
			// the built-in symbols stay in place when a refresh fails
			_ = loader.LoadSymbols(ctx, symbolCh)
		}()

		return symbolCh
	}
}

// Start runs proc once immediately when runNow is set, then at every UTC midnight
// until ctx is done. The returned channel is closed when the loop exits.
func (m *MidnightLoader) Start(ctx context.Context, runNow bool, proc func(<-chan market.SymbolConfig)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		if runNow {
			m.runOnce(ctx, proc)
		}

		for {
			wait := time.Until(NextMidnight(time.Now()))
			if m.Logger != nil {
				m.Logger.Debug("next symbol refresh scheduled", zap.Duration("in", wait))
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			m.runOnce(ctx, proc)
		}
	}()
	return done
}

func (m *MidnightLoader) runOnce(ctx context.Context, proc func(<-chan market.SymbolConfig)) {
	symbolCh := m.Load(ctx)
	proc(symbolCh)
}

// NextMidnight returns the first UTC midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}
