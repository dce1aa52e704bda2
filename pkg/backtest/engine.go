package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/weiway668/my-stock-system-sub002/pkg/analytics"
	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

var (
	ErrOutOfOrder    = errors.New("backtest: bar timestamps must be strictly increasing")
	ErrForeignSymbol = errors.New("backtest: bar symbol does not match request")
)

// Feeder yields bars for one symbol in time order. ok is false once the stream
// is exhausted.
type Feeder interface {
	Next(ctx context.Context) (bar Bar, ok bool, err error)
}

// IndicatorProvider computes indicators from the bar history up to and
// including the current bar. Compute is only called once the history holds at
// least WarmUp bars.
type IndicatorProvider interface {
	WarmUp() int
	Compute(history []Bar) (Indicators, error)
}

// Strategy maps the current bar, the indicator history and the open positions
// into a signal.
type Strategy interface {
	Name() string
	GenerateSignal(ctx context.Context, bar Bar, history []Indicators, positions []ledger.Position) (Signal, error)
}

// Sizer decides how many shares an actionable signal trades.
type Sizer interface {
	Size(bar Bar, signal Signal, cash decimal.Decimal, position ledger.Position) (int64, error)
}

// Engine drives a Strategy over a bar stream against a fresh ledger per run.
// An Engine holds no per-run state but its collaborators may; do not share one
// across concurrent runs unless they are stateless.
type Engine struct {
	Strategy   Strategy
	Indicators IndicatorProvider // optional
	Sizer      Sizer             // defaults to one lot of 100 shares
	Fees       *fees.Model

	SlippageRate decimal.Decimal
	RiskFreeRate float64 // annual, for Sharpe/Sortino

	// Location decides calendar-day boundaries for equity snapshots. Nil uses
	// each bar's own zone.
	Location *time.Location
}

// Run simulates req over feeder. It never returns nil; failures, including
// collaborator panics, come back as a StatusFailed result.
func (e *Engine) Run(ctx context.Context, req Request, feeder Feeder) (res *Result) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res = &Result{
		RunID:          runID,
		Request:        req,
		InitialCapital: req.InitialCapital,
		FinalCash:      req.InitialCapital,
		FinalEquity:    req.InitialCapital,
		StartedAt:      time.Now(),
	}
	if e.Strategy != nil {
		res.Strategy = e.Strategy.Name()
	}
	log := logx.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("backtest: panic: %v", r))
		}
		res.Elapsed = time.Since(res.StartedAt)
		if res.Failed() {
			log.Errorf("backtest %s %s failed: %s", res.RunID, req.Symbol, res.Message)
			return
		}
		log.Infof("backtest %s %s %s: bars=%d trades=%d final_equity=%s elapsed=%s",
			res.RunID, req.Symbol, res.Status, res.Bars, len(res.Trades), res.FinalEquity.StringFixed(2), res.Elapsed)
	}()

	if err := e.validate(req, feeder); err != nil {
		res.fail(err)
		return res
	}
	led, err := ledger.New(req.InitialCapital, e.Fees, e.SlippageRate)
	if err != nil {
		res.fail(fmt.Errorf("backtest: %w", err))
		return res
	}

	r := &run{engine: e, req: req, ledger: led, result: res}
	if err := r.loop(ctx, feeder); err != nil {
		res.fail(err)
		return res
	}
	if res.Bars == 0 {
		res.Status = StatusEmpty
		return res
	}

	res.Status = StatusCompleted
	res.FinalCash = led.Cash()
	res.FinalEquity = led.TotalEquity()
	res.EquityCurve = led.EquityCurve()
	res.Trades = led.Trades()
	res.Positions = led.Positions()
	res.Rejections = led.Rejections()
	res.Metrics = analytics.Compute(res.Trades, res.EquityCurve, e.RiskFreeRate)
	return res
}

func (e *Engine) validate(req Request, feeder Feeder) error {
	switch {
	case e.Strategy == nil:
		return errors.New("backtest: strategy is required")
	case e.Fees == nil:
		return errors.New("backtest: fee model is required")
	case feeder == nil:
		return errors.New("backtest: feeder is required")
	case req.Symbol == "":
		return errors.New("backtest: request symbol is required")
	case !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start):
		return errors.New("backtest: request end precedes start")
	}
	return nil
}

func (e *Engine) sizer() Sizer {
	if e.Sizer == nil {
		return FixedLots{Lots: 1, LotSize: 100}
	}
	return e.Sizer
}

// dayOf truncates ts to midnight of its calendar day.
func (e *Engine) dayOf(ts time.Time) time.Time {
	if e.Location != nil {
		ts = ts.In(e.Location)
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// run is the mutable state of a single Engine.Run call.
type run struct {
	engine *Engine
	req    Request
	ledger *ledger.Ledger
	result *Result

	bars       []Bar
	indicators []Indicators
	day        time.Time // calendar day of the last traded bar
	orderSeq   int
}

func (r *run) loop(ctx context.Context, feeder Feeder) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		bar, ok, err := feeder.Next(ctx)
		if err != nil {
			return fmt.Errorf("backtest: feeder: %w", err)
		}
		if !ok {
			break
		}
		if bar.Symbol != r.req.Symbol {
			return fmt.Errorf("%w: got %q want %q", ErrForeignSymbol, bar.Symbol, r.req.Symbol)
		}
		if n := len(r.bars); n > 0 && !bar.Timestamp.After(r.bars[n-1].Timestamp) {
			return fmt.Errorf("%w: %s after %s", ErrOutOfOrder,
				bar.Timestamp.Format(time.RFC3339), r.bars[n-1].Timestamp.Format(time.RFC3339))
		}
		if !r.req.End.IsZero() && bar.Timestamp.After(r.req.End) {
			break
		}
		if err := r.step(ctx, bar); err != nil {
			return err
		}
	}

	if r.result.Bars > 0 {
		if err := r.ledger.SnapshotEquity(r.day); err != nil {
			return fmt.Errorf("backtest: snapshot %s: %w", r.day.Format(time.DateOnly), err)
		}
	}
	return nil
}

func (r *run) step(ctx context.Context, bar Bar) error {
	r.bars = append(r.bars, bar)
	ind, err := r.computeIndicators()
	if err != nil {
		return err
	}
	r.indicators = append(r.indicators, ind)

	if !r.req.Start.IsZero() && bar.Timestamp.Before(r.req.Start) {
		r.result.WarmUpBars++
		return nil
	}

	// The previous day is closed out before this bar is marked or traded,
	// ahead of the per-bar steps, so its snapshot is the equity at that day's
	// last bar rather than one already marked at the new day's price.
	day := r.engine.dayOf(bar.Timestamp)
	if r.result.Bars > 0 && !day.Equal(r.day) {
		if err := r.ledger.SnapshotEquity(r.day); err != nil {
			return fmt.Errorf("backtest: snapshot %s: %w", r.day.Format(time.DateOnly), err)
		}
	}
	r.day = day
	r.result.Bars++

	r.ledger.MarkToMarket(map[string]decimal.Decimal{bar.Symbol: bar.Close})

	sig, err := r.engine.Strategy.GenerateSignal(ctx, bar, r.indicators, r.ledger.Positions())
	if err != nil {
		return fmt.Errorf("backtest: strategy %s: %w", r.engine.Strategy.Name(), err)
	}
	if !sig.Kind.Actionable() {
		return nil
	}
	r.result.Signals++
	return r.act(bar, sig)
}

func (r *run) computeIndicators() (Indicators, error) {
	p := r.engine.Indicators
	if p == nil || len(r.bars) < p.WarmUp() {
		return Indicators{}, nil
	}
	ind, err := p.Compute(r.bars)
	if err != nil {
		return nil, fmt.Errorf("backtest: indicators: %w", err)
	}
	if ind == nil {
		ind = Indicators{}
	}
	return ind, nil
}

// act turns an actionable signal into at most one order.
func (r *run) act(bar Bar, sig Signal) error {
	pos, held := r.ledger.Position(bar.Symbol)

	var (
		side ledger.Side
		qty  int64
		err  error
	)
	switch sig.Kind {
	case SignalBuy:
		side = ledger.SideBuy
		qty, err = r.engine.sizer().Size(bar, sig, r.ledger.Cash(), pos)
	case SignalSell:
		side = ledger.SideSell
		qty, err = r.engine.sizer().Size(bar, sig, r.ledger.Cash(), pos)
		if held && qty > pos.Quantity {
			qty = pos.Quantity
		}
	case SignalCloseLong:
		side = ledger.SideSell
		qty = pos.Quantity
	case SignalCloseShort:
		// Long-only book: there is never a short to cover.
		return nil
	default:
		return fmt.Errorf("backtest: unknown signal kind %q", sig.Kind)
	}
	if err != nil {
		return fmt.Errorf("backtest: sizer: %w", err)
	}
	if qty <= 0 {
		return nil
	}

	r.orderSeq++
	order := ledger.NewOrder(fmt.Sprintf("%s-%d", r.result.RunID, r.orderSeq), bar.Symbol, side, qty, bar.Close, bar.Timestamp)
	if out := r.ledger.Execute(order); !out.Accepted {
		logx.Debugf("backtest %s: %s %d %s at %s rejected: %s",
			r.result.RunID, side, qty, bar.Symbol, bar.Close.String(), out.Reason)
	}
	return nil
}
