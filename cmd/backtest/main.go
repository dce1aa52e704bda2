package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/weiway668/my-stock-system-sub002/internal/cli"
	"github.com/weiway668/my-stock-system-sub002/internal/config"
	"github.com/weiway668/my-stock-system-sub002/internal/svc"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
)

func main() {
	var (
		configFile = flag.String("f", config.DefaultFile, "the config file")
		barsPath   = flag.String("bars", "", "CSV file of timestamp,open,high,low,close,volume bars")
		symbol     = flag.String("symbol", "", "symbol the bars belong to")
		startRaw   = flag.String("start", "", "first trading date (YYYY-MM-DD); earlier bars only warm up indicators")
		endRaw     = flag.String("end", "", "last trading date (YYYY-MM-DD), inclusive")
		sweepRaw   = flag.String("sweep", "", "comma-separated slippage rates to sweep, e.g. 0,0.001,0.002")
		runID      = flag.String("run-id", "", "run id; generated when empty")
		history    = flag.Int("history", 0, "list the N latest stored runs for -symbol and exit")
		showReport = flag.Bool("report", false, "print the rendered report of every run")
	)
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	cli.LogConfigSummary(cfg)

	svcCtx := svc.MustNewServiceContext(*cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *history > 0 {
		if err := listRuns(ctx, svcCtx, *symbol, *history); err != nil {
			fatalf("list runs: %v", err)
		}
		return
	}

	if strings.TrimSpace(*barsPath) == "" || strings.TrimSpace(*symbol) == "" {
		fatalf("both -bars and -symbol are required")
	}
	start, end, err := parseWindow(*startRaw, *endRaw, cfg.Location())
	if err != nil {
		fatalf("%v", err)
	}
	rates, err := parseRates(*sweepRaw)
	if err != nil {
		fatalf("%v", err)
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = uuid.NewString()
	}

	jobs := make([]backtest.Job, 0, max(len(rates), 1))
	newJob := func(name, runID string, slippage *decimal.Decimal) {
		feeder, err := backtest.NewCSVFeederFromFile(*symbol, *barsPath, cfg.Location())
		if err != nil {
			fatalf("%v", err)
		}
		req := svcCtx.Request(runID, *symbol)
		req.Start, req.End = start, end
		jobs = append(jobs, backtest.Job{Name: name, Engine: svcCtx.NewEngine(slippage), Request: req, Feeder: feeder})
	}
	if len(rates) == 0 {
		newJob("single", id, nil)
	}
	for i := range rates {
		newJob(fmt.Sprintf("slippage=%s", rates[i]), fmt.Sprintf("%s-s%d", id, i+1), &rates[i])
	}

	results, err := backtest.Sweep(ctx, jobs, cfg.Sweep.Parallelism)
	if err != nil {
		logx.Errorf("sweep interrupted: %v", err)
	}

	failed := 0
	for i, res := range results {
		if res == nil {
			continue
		}
		logx.Infof("job %s:", jobs[i].Name)
		cli.LogResultSummary(res)
		if res.Failed() {
			failed++
		}
		if *showReport {
			text, err := svcCtx.Report.Render(res)
			if err != nil {
				logx.Errorf("render report %s: %v", res.RunID, err)
			} else {
				fmt.Println(text)
			}
		}
		if err := svcCtx.Archive(ctx, res); err != nil {
			logx.Errorf("archive run %s: %v", res.RunID, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func listRuns(ctx context.Context, svcCtx *svc.ServiceContext, symbol string, limit int) error {
	if svcCtx.Runs == nil {
		return fmt.Errorf("run storage is not configured")
	}
	var symbols []string
	if s := strings.TrimSpace(symbol); s != "" {
		symbols = []string{s}
	}
	runs, err := svcCtx.Runs.LatestRuns(ctx, symbols, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		logx.Infof("%s  %s  %-10s %-24s equity %s -> %s  trades %d",
			r.CreatedAt.Format(time.DateTime), r.ID, r.Symbol, r.Strategy,
			r.InitialCapital.StringFixed(2), r.FinalEquity.StringFixed(2), r.Trades)
	}
	return nil
}

// parseWindow turns the date flags into an inclusive [start, end] range.
func parseWindow(startRaw, endRaw string, loc *time.Location) (start, end time.Time, err error) {
	if s := strings.TrimSpace(startRaw); s != "" {
		if start, err = time.ParseInLocation(time.DateOnly, s, loc); err != nil {
			return start, end, fmt.Errorf("invalid -start %q: %w", s, err)
		}
	}
	if s := strings.TrimSpace(endRaw); s != "" {
		day, perr := time.ParseInLocation(time.DateOnly, s, loc)
		if perr != nil {
			return start, end, fmt.Errorf("invalid -end %q: %w", s, perr)
		}
		end = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("-end %s is before -start %s", endRaw, startRaw)
	}
	return start, end, nil
}

func parseRates(raw string) ([]decimal.Decimal, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	out := make([]decimal.Decimal, 0, len(fields))
	for _, f := range fields {
		rate, err := decimal.NewFromString(f)
		if err != nil {
			return nil, fmt.Errorf("invalid sweep rate %q: %w", f, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("sweep rate %s must be in [0, 1)", f)
		}
		out = append(out, rate)
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	logx.Errorf(format, args...)
	logx.Close()
	os.Exit(1)
}
