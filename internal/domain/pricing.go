package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a dollar amount. Decimal arithmetic keeps budget comparisons exact.
type Money = decimal.Decimal

var (
	// ZeroMoney is $0.00.
	ZeroMoney = decimal.Zero

	standardImageRate = decimal.RequireFromString("0.15")
	highResImageRate  = decimal.RequireFromString("0.30")
)

// Dollars parses a decimal dollar amount such as "5.00".
func Dollars(raw string) (Money, error) {
	m, err := decimal.NewFromString(raw)
	if err != nil {
		return ZeroMoney, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return m, nil
}

// MustDollars is Dollars for constants; it panics on malformed input.
func MustDollars(raw string) Money {
	return decimal.RequireFromString(raw)
}

// FormatUSD renders m as "$1.23".
func FormatUSD(m Money) string {
	return "$" + m.StringFixed(2)
}

// PerImageRate returns the price of a single image at the given resolution.
func PerImageRate(res Resolution) Money {
	if res == Resolution4K {
		return highResImageRate
	}
	return standardImageRate
}

// CostFor prices a number of images at the given resolution.
func CostFor(res Resolution, images int) Money {
	if images <= 0 {
		return ZeroMoney
	}
	return PerImageRate(res).Mul(decimal.NewFromInt(int64(images)))
}

// Estimate is the pre-flight cost of a request.
type Estimate struct {
	Resolution Resolution `json:"resolution"`
	Images     int        `json:"images"`
	PerImage   Money      `json:"per_image"`
	Total      Money      `json:"total"`
}

// EstimateCost prices a request using its clamped variation count. It is pure.
func EstimateCost(req GenerationRequest) Estimate {
	images := ClampVariations(req.NumVariations)
	return Estimate{
		Resolution: req.Resolution,
		Images:     images,
		PerImage:   PerImageRate(req.Resolution),
		Total:      CostFor(req.Resolution, images),
	}
}
