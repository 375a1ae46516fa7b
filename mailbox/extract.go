package mailbox

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "PKR"

var (
	ErrNoTransactionID = errors.New("mailbox: no transaction id in message")
	ErrNoAmount        = errors.New("mailbox: no amount in message")

	tidPattern = regexp.MustCompile(`(?i)TID:\s*(\d+)`)
)

type Extraction struct {
	TransactionID string
	Amount        decimal.Decimal
}

// Extractor finds "TID:<digits>" and "<currency> 1,234.56" in alert text.
type Extractor struct {
	amountPattern *regexp.Regexp
}

func NewExtractor(currency string) *Extractor {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Extractor{
		amountPattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(currency) + `\s*([\d,]+(?:\.\d{2})?)`),
	}
}

// TransactionID returns the first run of digits after "TID:".
func (e *Extractor) TransactionID(body string) (string, bool) {
	m := tidPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Amount returns the first amount after the currency marker with grouping
// commas removed. A zero amount counts as missing.
func (e *Extractor) Amount(body string) (decimal.Decimal, bool) {
	m := e.amountPattern.FindStringSubmatch(body)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || amount.IsZero() {
		return decimal.Zero, false
	}
	return amount, true
}

func (e *Extractor) Extract(body string) (Extraction, error) {
	tid, ok := e.TransactionID(body)
	if !ok {
		return Extraction{}, ErrNoTransactionID
	}
	amount, ok := e.Amount(body)
	if !ok {
		return Extraction{TransactionID: tid}, ErrNoAmount
	}
	return Extraction{TransactionID: tid, Amount: amount}, nil
}
