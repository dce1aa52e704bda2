package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

// ThresholdStrategy buys when the close rises at least ThresholdPct percent
// over the previous close and exits when it falls by as much. It reads the
// move from the ChangeKey indicator.
type ThresholdStrategy struct {
	ThresholdPct float64 // percent, e.g. 1.5
}

func (s *ThresholdStrategy) Name() string {
	return fmt.Sprintf("threshold(%g%%)", s.ThresholdPct)
}

func (s *ThresholdStrategy) GenerateSignal(_ context.Context, bar Bar, history []Indicators, positions []ledger.Position) (Signal, error) {
	sig := Signal{Symbol: bar.Symbol, Kind: SignalNoAction, Price: bar.Close}
	if s.ThresholdPct <= 0 {
		return sig, fmt.Errorf("threshold must be positive, got %g", s.ThresholdPct)
	}
	if len(history) == 0 {
		return sig, nil
	}
	change, ok := history[len(history)-1][ChangeKey]
	if !ok {
		return sig, nil
	}
	pct := change * 100
	sig.Confidence = math.Min(math.Abs(pct)/(2*s.ThresholdPct), 1)

	held := holding(positions, bar.Symbol)
	switch {
	case pct >= s.ThresholdPct:
		sig.Kind = SignalBuy
		sig.Reason = fmt.Sprintf("close up %.2f%%", pct)
	case pct <= -s.ThresholdPct && held:
		sig.Kind = SignalSell
		sig.Reason = fmt.Sprintf("close down %.2f%%", pct)
	default:
		sig.Kind = SignalHold
		sig.Confidence = 0
	}
	return sig, nil
}

func holding(positions []ledger.Position, symbol string) bool {
	for _, p := range positions {
		if p.Symbol == symbol && p.Quantity > 0 {
			return true
		}
	}
	return false
}
