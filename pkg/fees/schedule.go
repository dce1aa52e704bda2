package fees

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/weiway668/my-stock-system-sub002/pkg/confkit"
)

// Schedule describes a jurisdiction's fee regime. Rates are fractions of trade
// value (0.00025 == 0.025%); floors, caps and the system fee are currency
// amounts with at most two decimal places.
type Schedule struct {
	Name              string          `yaml:"name" json:"name"`
	CommissionRate    decimal.Decimal `yaml:"commission_rate" json:"commission_rate"`
	MinCommission     decimal.Decimal `yaml:"min_commission" json:"min_commission"`
	StampDutyRate     decimal.Decimal `yaml:"stamp_duty_rate" json:"stamp_duty_rate"`
	TradingFeeRate    decimal.Decimal `yaml:"trading_fee_rate" json:"trading_fee_rate"`
	SettlementFeeRate decimal.Decimal `yaml:"settlement_fee_rate" json:"settlement_fee_rate"`
	MinSettlementFee  decimal.Decimal `yaml:"min_settlement_fee" json:"min_settlement_fee"`
	MaxSettlementFee  decimal.Decimal `yaml:"max_settlement_fee" json:"max_settlement_fee"` // zero means uncapped
	SystemFee         decimal.Decimal `yaml:"system_fee" json:"system_fee"`
}

// HongKong returns the default HKEX retail schedule.
func HongKong() Schedule {
	return Schedule{
		Name:              "hk",
		CommissionRate:    decimal.RequireFromString("0.00025"),
		MinCommission:     decimal.RequireFromString("5.00"),
		StampDutyRate:     decimal.RequireFromString("0.0013"),
		TradingFeeRate:    decimal.RequireFromString("0.0000565"),
		SettlementFeeRate: decimal.RequireFromString("0.00002"),
		MinSettlementFee:  decimal.RequireFromString("2.00"),
		MaxSettlementFee:  decimal.RequireFromString("100.00"),
		SystemFee:         decimal.RequireFromString("0.50"),
	}
}

// Zero returns a schedule that charges nothing.
func Zero() Schedule {
	return Schedule{Name: "zero"}
}

// Validate ensures schedule sanity.
func (s Schedule) Validate() error {
	rates := []struct {
		name  string
		value decimal.Decimal
	}{
		{"commission_rate", s.CommissionRate},
		{"min_commission", s.MinCommission},
		{"stamp_duty_rate", s.StampDutyRate},
		{"trading_fee_rate", s.TradingFeeRate},
		{"settlement_fee_rate", s.SettlementFeeRate},
		{"min_settlement_fee", s.MinSettlementFee},
		{"max_settlement_fee", s.MaxSettlementFee},
		{"system_fee", s.SystemFee},
	}
	for _, r := range rates {
		if r.value.IsNegative() {
			return fmt.Errorf("fees: %s must not be negative", r.name)
		}
	}
	one := decimal.NewFromInt(1)
	for _, r := range rates {
		if strings.HasSuffix(r.name, "_rate") && r.value.GreaterThanOrEqual(one) {
			return fmt.Errorf("fees: %s must be below 1", r.name)
		}
	}
	if s.MaxSettlementFee.IsPositive() && s.MinSettlementFee.GreaterThan(s.MaxSettlementFee) {
		return errors.New("fees: min_settlement_fee exceeds max_settlement_fee")
	}
	return nil
}

// scheduleFile mirrors Schedule with optional fields so omitted keys keep the
// defaults.
type scheduleFile struct {
	Name              string           `yaml:"name"`
	CommissionRate    *decimal.Decimal `yaml:"commission_rate"`
	MinCommission     *decimal.Decimal `yaml:"min_commission"`
	StampDutyRate     *decimal.Decimal `yaml:"stamp_duty_rate"`
	TradingFeeRate    *decimal.Decimal `yaml:"trading_fee_rate"`
	SettlementFeeRate *decimal.Decimal `yaml:"settlement_fee_rate"`
	MinSettlementFee  *decimal.Decimal `yaml:"min_settlement_fee"`
	MaxSettlementFee  *decimal.Decimal `yaml:"max_settlement_fee"`
	SystemFee         *decimal.Decimal `yaml:"system_fee"`
}

// LoadSchedule reads a fee schedule from disk.
func LoadSchedule(path string) (*Schedule, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fee schedule: %w", err)
	}
	defer file.Close()
	return LoadScheduleFromReader(file)
}

// LoadScheduleFromReader constructs a Schedule from a reader. Keys that are
// absent fall back to HongKong().
func LoadScheduleFromReader(r io.Reader) (*Schedule, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fee schedule: %w", err)
	}
	var raw scheduleFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal fee schedule: %w", err)
	}
	s := HongKong()
	if raw.Name != "" {
		s.Name = raw.Name
	}
	overlay(&s.CommissionRate, raw.CommissionRate)
	overlay(&s.MinCommission, raw.MinCommission)
	overlay(&s.StampDutyRate, raw.StampDutyRate)
	overlay(&s.TradingFeeRate, raw.TradingFeeRate)
	overlay(&s.SettlementFeeRate, raw.SettlementFeeRate)
	overlay(&s.MinSettlementFee, raw.MinSettlementFee)
	overlay(&s.MaxSettlementFee, raw.MaxSettlementFee)
	overlay(&s.SystemFee, raw.SystemFee)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func overlay(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}
