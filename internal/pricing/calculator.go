// Package pricing derives order amounts from catalog prices.
//
// Every amount is rounded half-up to two decimal places as soon as it is
// produced, so a breakdown recomputed from the same inputs always matches
// to the cent.
package pricing

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Config holds the store-wide pricing policy.
type Config struct {
	VATRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
}

// DefaultConfig is 10% VAT, free shipping from 500.00 and a 5.00 flat fee otherwise.
func DefaultConfig() Config {
	return Config{
		VATRate:               decimal.NewFromFloat(0.10),
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShipping:          decimal.NewFromInt(5),
	}
}

// Line is one priced input: a unit price, its discount and the ordered quantity.
type Line struct {
	UnitPrice       decimal.Decimal
	DiscountPercent int
	Quantity        int
}

// LineBreakdown is the priced result for a single Line.
type LineBreakdown struct {
	FinalUnitPrice decimal.Decimal
	Original       decimal.Decimal
	Discounted     decimal.Decimal
}

// Breakdown captures every amount derived for a set of lines.
type Breakdown struct {
	OriginalSubtotal   decimal.Decimal
	DiscountedSubtotal decimal.Decimal
	VAT                decimal.Decimal
	DiscountAmount     decimal.Decimal
	Shipping           decimal.Decimal
	Total              decimal.Decimal
	Lines              []LineBreakdown
}

// Calculator is the single implementation of the store's pricing formula.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FinalUnitPrice applies the discount percentage to a listed price.
func FinalUnitPrice(price decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return round2(price)
	}
	factor := one.Sub(decimal.NewFromInt(int64(discountPercent)).Div(hundred))
	return round2(price.Mul(factor))
}

// Calculate prices the given lines. It is a pure function of its input and the calculator's config.
func (c *Calculator) Calculate(lines []Line) Breakdown {
	b := Breakdown{
		OriginalSubtotal:   decimal.Zero,
		DiscountedSubtotal: decimal.Zero,
		Lines:              make([]LineBreakdown, 0, len(lines)),
	}

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		final := FinalUnitPrice(line.UnitPrice, line.DiscountPercent)
		lb := LineBreakdown{
			FinalUnitPrice: final,
			Original:       round2(line.UnitPrice.Mul(qty)),
			Discounted:     round2(final.Mul(qty)),
		}
		b.Lines = append(b.Lines, lb)
		b.OriginalSubtotal = round2(b.OriginalSubtotal.Add(lb.Original))
		b.DiscountedSubtotal = round2(b.DiscountedSubtotal.Add(lb.Discounted))
	}

	// VAT is charged on the listed price; the discount credit is grossed up by the same rate.
	b.VAT = round2(b.OriginalSubtotal.Mul(c.cfg.VATRate))
	b.DiscountAmount = round2(b.OriginalSubtotal.Sub(b.DiscountedSubtotal).Mul(one.Add(c.cfg.VATRate)))

	b.Shipping = round2(c.cfg.FlatShipping)
	if b.DiscountedSubtotal.GreaterThanOrEqual(c.cfg.FreeShippingThreshold) {
		b.Shipping = decimal.Zero
	}

	b.Total = round2(b.OriginalSubtotal.Add(b.VAT).Sub(b.DiscountAmount).Add(b.Shipping))
	return b
}
