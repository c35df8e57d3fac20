// Package format produces Indonesian-locale display strings for the
// monetary and date fields of a generated report.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ZeroCurrency is returned for inputs that cannot be formatted. Monetary
// display is best-effort for malformed client input, so a bad value
// degrades to zero instead of failing the whole render.
const ZeroCurrency = "Rp 0"

// Formatter renders id-ID currency and date strings. All methods are pure
// apart from diagnostic logging.
type Formatter struct {
	printer *message.Printer
	logger  *zap.Logger
}

// NewFormatter creates a Formatter bound to the Indonesian locale.
func NewFormatter(logger *zap.Logger) *Formatter {
	return &Formatter{
		printer: message.NewPrinter(language.Indonesian),
		logger:  logger,
	}
}

// Currency formats an amount as Indonesian Rupiah: "Rp 50.000,00".
// Non-finite input logs a diagnostic and yields ZeroCurrency.
func (f *Formatter) Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		f.logger.Warn("Invalid amount for currency formatting",
			zap.Float64("amount", amount))
		return ZeroCurrency
	}
	return "Rp " + f.printer.Sprintf("%v",
		number.Decimal(amount,
			number.MinFractionDigits(2),
			number.MaxFractionDigits(2)))
}

// CurrencyDecimal formats a decimal amount as Indonesian Rupiah.
func (f *Formatter) CurrencyDecimal(amount decimal.Decimal) string {
	return f.Currency(amount.InexactFloat64())
}

// Date renders a calendar date the way id-ID locales do: day/month/year,
// no zero padding.
func (f *Formatter) Date(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
