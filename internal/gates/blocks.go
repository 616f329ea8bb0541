package gates

import "github.com/oraklabs/oraklscan/internal/domain"

// BlockConfig tunes the block-trade filter.
type BlockConfig struct {
	MinShares   int64
	MinNotional float64
}

// DefaultBlockConfig: 10k shares or $1M notional in a single print.
func DefaultBlockConfig() BlockConfig {
	return BlockConfig{MinShares: 10_000, MinNotional: 1_000_000}
}

// BlockTrade keeps single prints large enough to be institutional, by
// share count or notional.
type BlockTrade struct {
	cfg BlockConfig
}

func NewBlockTrade(cfg BlockConfig) *BlockTrade { return &BlockTrade{cfg: cfg} }

func (b *BlockTrade) Name() string { return "block_trade" }

func (b *BlockTrade) Evaluate(t domain.Trade) Outcome {
	ev := newEvaluator()
	if err := t.Validate(); err != nil {
		ev.fail("sanitize", err.Error())
		return ev.result()
	}
	notional := t.Notional()
	big := t.Size >= b.cfg.MinShares || notional >= b.cfg.MinNotional
	ev.check("block_size", big, t.Size, b.cfg.MinShares)
	return ev.result()
}
