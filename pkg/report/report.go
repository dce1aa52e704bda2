// Package report renders a backtest Result as text through a Go template.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `Backtest {{ .RunID }} [{{ .Request.Symbol }}] {{ .Strategy }}: {{ .Status }}
{{- if .Message }}
Error: {{ .Message }}
{{- else }}
Period: {{ date .Metrics.StartDate }} .. {{ date .Metrics.EndDate }} ({{ .Metrics.TradingDays }} days)
Equity: {{ money .InitialCapital }} -> {{ money .FinalEquity }} (cash {{ money .FinalCash }})
Return: cumulative {{ pct .Metrics.CumulativeReturn }}, annualized {{ pct .Metrics.AnnualizedReturn }}
Risk: volatility {{ pct .Metrics.AnnualizedVolatility }}, max drawdown {{ pct .Metrics.MaxDrawdown }} on {{ date .Metrics.MaxDrawdownDate }}
Ratios: sharpe {{ num .Metrics.SharpeRatio }}, sortino {{ num .Metrics.SortinoRatio }}, calmar {{ num .Metrics.CalmarRatio }}
Trades: {{ .Metrics.Trades.TotalTrades }} closed, win rate {{ pct .Metrics.Trades.WinRate }}, profit factor {{ num .Metrics.Trades.ProfitFactor }}, costs {{ money .Metrics.Trades.TotalCosts }}
{{- range .Positions }}
Open: {{ .Symbol }} {{ .Quantity }} @ {{ money .AverageCost }}, marked {{ money .MarketValue }}, unrealized {{ money .UnrealizedPnL }}
{{- end }}
{{- end }}
`

// Funcs are available to every report template.
var Funcs = template.FuncMap{
	"pct":   func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"num":   func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.DateOnly)
	},
}

// Template is a parsed report template. A template loaded from a file can be
// reloaded in place.
type Template struct {
	path string

	mu     sync.RWMutex
	tmpl   *template.Template
	digest string
}

// New parses text as a report template.
func New(text string) (*Template, error) {
	t := &Template{}
	if err := t.parse("report", []byte(text)); err != nil {
		return nil, err
	}
	return t, nil
}

// Load parses the template file at path. An empty path yields DefaultTemplate.
func Load(path string) (*Template, error) {
	if path == "" {
		return New(DefaultTemplate)
	}
	t := &Template{path: path}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload rereads the template file. Templates built with New have nothing to
// reload.
func (t *Template) Reload() error {
	if t.path == "" {
		return nil
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("report: read template %q: %w", t.path, err)
	}
	return t.parse(filepath.Base(t.path), data)
}

func (t *Template) parse(name string, data []byte) error {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(Funcs).Parse(string(data))
	if err != nil {
		return fmt.Errorf("report: parse template %q: %w", name, err)
	}
	sum := sha256.Sum256(data)

	t.mu.Lock()
	t.tmpl, t.digest = tmpl, hex.EncodeToString(sum[:])
	t.mu.Unlock()
	return nil
}

// Render executes the template against res.
func (t *Template) Render(res *backtest.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("report: nil result")
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, res); err != nil {
		return "", fmt.Errorf("report: render run %s: %w", res.RunID, err)
	}
	return buf.String(), nil
}

// Digest is the sha256 of the template source, handy for tagging rendered
// reports with the template version.
func (t *Template) Digest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.digest
}
