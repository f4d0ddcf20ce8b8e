package marketplace

import (
	"fmt"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for budgets and prices.
const MoneyScale = 2

// maxAmount is the smallest value a NUMERIC(14, 2) column cannot hold.
var maxAmount = decimal.New(1, 14-MoneyScale)

// checkAmount accepts positive amounts that the money columns store exactly.
// Anything finer than a cent is refused rather than rounded.
func checkAmount(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than 0", domain.ErrInvalidArgument, field)
	}
	if !v.Equal(v.Truncate(MoneyScale)) {
		return fmt.Errorf("%w: %s must have at most %d decimal places", domain.ErrInvalidArgument, field, MoneyScale)
	}
	if v.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s must be less than %s", domain.ErrInvalidArgument, field, maxAmount.String())
	}
	return nil
}
