package backtest

import (
	"context"
	"fmt"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

// RSIStrategy is a mean-reversion rule on RSIKey(Period): buy when flat and
// oversold, close the long when overbought. It needs a Technical provider
// with the same RSIPeriod.
type RSIStrategy struct {
	Period     int
	Oversold   float64 // e.g. 30
	Overbought float64 // e.g. 70
}

func (s *RSIStrategy) Name() string {
	return fmt.Sprintf("rsi(%d,%g/%g)", s.Period, s.Oversold, s.Overbought)
}

func (s *RSIStrategy) GenerateSignal(_ context.Context, bar Bar, history []Indicators, positions []ledger.Position) (Signal, error) {
	sig := Signal{Symbol: bar.Symbol, Kind: SignalNoAction, Price: bar.Close}
	if s.Period <= 0 || s.Oversold <= 0 || s.Overbought <= s.Oversold || s.Overbought >= 100 {
		return sig, fmt.Errorf("invalid rsi bounds period=%d oversold=%g overbought=%g", s.Period, s.Oversold, s.Overbought)
	}
	if len(history) == 0 {
		return sig, nil
	}
	rsi, ok := history[len(history)-1][RSIKey(s.Period)]
	if !ok {
		return sig, nil
	}

	held := holding(positions, bar.Symbol)
	switch {
	case rsi <= s.Oversold && !held:
		sig.Kind = SignalBuy
		sig.Confidence = (s.Oversold - rsi) / s.Oversold
		sig.Reason = fmt.Sprintf("rsi %.1f oversold", rsi)
	case rsi >= s.Overbought && held:
		sig.Kind = SignalCloseLong
		sig.Confidence = (rsi - s.Overbought) / (100 - s.Overbought)
		sig.Reason = fmt.Sprintf("rsi %.1f overbought", rsi)
	default:
		sig.Kind = SignalHold
	}
	return sig, nil
}
