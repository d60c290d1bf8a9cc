package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/velomart/storefront/internal/stock"
)

var (
	ErrEmptyCart        = errors.New("cart is empty, nothing to submit")
	ErrMethodUnresolved = errors.New("shipping and payment methods not resolved")
)

// StockBlockedError aggregates every line whose requested quantity exceeds
// the available stock, so the shopper sees all offenders at once.
type StockBlockedError struct {
	Lines []stock.LineStatus
}

func (e *StockBlockedError) Error() string {
	keys := make([]string, len(e.Lines))
	for i, line := range e.Lines {
		keys[i] = fmt.Sprintf("%s (available %d)", line.CartKey, line.Available)
	}
	return "insufficient stock for: " + strings.Join(keys, ", ")
}
