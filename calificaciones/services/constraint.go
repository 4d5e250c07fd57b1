package services

import (
	"github.com/shopspring/decimal"
)

// BaseSumLimit is the ceiling on the BASE factor group: 1 plus a 1e-8
// tolerance that absorbs the rounding residue of normalization. A sum of
// exactly 1.00000001 is accepted; anything above is rejected.
var BaseSumLimit = decimal.New(100000001, -8)

// ValidateBaseSum checks the business ceiling on the BASE group of a factor
// set. It is input-mode agnostic: the same check runs on direct entry, API
// payloads and CSV rows. The sum is always returned so callers can build the
// user-facing message.
func ValidateBaseSum(factors *FactorSet) (decimal.Decimal, error) {
	sum := factors.BaseSum()
	if sum.GreaterThan(BaseSumLimit) {
		return sum, &ConstraintViolation{Sum: sum}
	}
	return sum, nil
}
