package services

import (
	"fmt"

	"calificaciones-backend/db/models"

	"github.com/shopspring/decimal"
)

// FactorCode indexes the closed set of 30 regulatory factor codes, F08..F37.
// The set is a fixed, versioned schema: codes are never user-extensible.
type FactorCode int

const (
	F08 FactorCode = iota
	F09
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24
	F25
	F26
	F27
	F28
	F29
	F30
	F31
	F32
	F33
	F34
	F35
	F36
	F37

	NumFactorCodes = 30
)

// Number returns the two-digit regulatory number of the code (8..37).
func (c FactorCode) Number() int {
	return int(c) + 8
}

// String renders the zero-padded database code, e.g. "F08".
func (c FactorCode) String() string {
	return fmt.Sprintf("F%02d", c.Number())
}

// ParseFactorCode maps a database code ("F08".."F37") back to its FactorCode.
func ParseFactorCode(s string) (FactorCode, bool) {
	var n int
	if _, err := fmt.Sscanf(s, "F%02d", &n); err != nil {
		return 0, false
	}
	if n < 8 || n > 37 {
		return 0, false
	}
	return FactorCode(n - 8), true
}

// FactorGroup partitions the 30 codes by normalization behavior.
type FactorGroup int

const (
	// GroupBase (F08..F19) forms the normalization denominator.
	GroupBase FactorGroup = iota
	// GroupDerived (F20..F33) is normalized by the BASE total but does not
	// contribute to it.
	GroupDerived
	// GroupDirect (F34..F37) holds rates entered as-is, never normalized.
	GroupDirect
)

// Group returns the normalization group of the code.
func (c FactorCode) Group() FactorGroup {
	switch {
	case c <= F19:
		return GroupBase
	case c <= F33:
		return GroupDerived
	default:
		return GroupDirect
	}
}

// Label returns the regulatory description used when factor rows are created
// from manual entry or the external API.
func (c FactorCode) Label() string {
	return factorLabels[c]
}

var factorLabels = [NumFactorCodes]string{
	F08: "Factor-08 No Constitutiva de Renta No Acogido a Impto",
	F09: "Factor-09 Impto. 1ra Caetg. Afecto GI. Comp. Con Devolución",
	F10: "Factor-10 Impuesto Tasa Adicional Exento Art. 21",
	F11: "Factor-11 Incremento Impuesto 1ra Categoría",
	F12: "Factor-12 Impto. 1ra Categ Exento GI. Comp. Con Devolución",
	F13: "Factor-13 Impto. 1ra Categ. Afecto GI. Comp. Sin Devoución",
	F14: "Factor-14 Impto. 1ra Categg. Exento GI. Comp. Sin Devolución",
	F15: "Factor-15 Impro. Créditos pro Impuestos Externos",
	F16: "Factor-16 No Constitutiva de Renta Acogido a Impto.",
	F17: "Factor-17 No Constitutiva de Renta de Renta Devolución de Capital Art. 17",
	F18: "Factor-18 Rentas Extentas de Impro GC Y/O Impto Adicional",
	F19: "Factor-19 Ingreso no Constitutivos de Renta",
	F20: "Factor-20 Sin Derecho a Devolución",
	F21: "Factor-21 Con Derecho a Devolución",
	F22: "Factor-22 Sin Derecho a Devolución",
	F23: "Factor-23 Con Derecho a Devolución",
	F24: "Factor-24 Sin Derecho a Devolución",
	F25: "Factor-25 Con Derecho a Devolución",
	F26: "Factor-26 Sin Derecho a Devolución",
	F27: "Factor-27 Con Derecho a Devolución",
	F28: "Factor-28 Credito por IPE",
	F29: "Factor-29 Sin Derecho a Devolución",
	F30: "Factor-30 Con Derecho a Devolución",
	F31: "Factor-31 Sin Derecho a Devolución",
	F32: "Factor-32 Con Derecho a Devolución",
	F33: "Factor-33 Credito por IPE",
	F34: "Factor-34 Cred. Por Impto.",
	F35: "Factor-35 Tasa Efectiva Del Cred. Del FUT (TEF)",
	F36: "Factor-36 Tasa Efectiva Del Cred. Del FUNT (TEX)",
	F37: "Factor-37 Devolución de Capital Art. 17 num 7 LIR",
}

// FactorSet is the fixed-size record of all 30 factor slots, indexed by
// FactorCode. The zero value has every slot at decimal zero.
type FactorSet [NumFactorCodes]decimal.Decimal

// FactorSetFromRows rebuilds the set from stored factor rows. Slots with no
// row stay zero; rows whose code is outside the schema are skipped.
func FactorSetFromRows(rows []models.Factor) FactorSet {
	var set FactorSet
	for _, row := range rows {
		if c, ok := ParseFactorCode(row.Code); ok {
			set.Set(c, row.Value)
		}
	}
	return set
}

// Get returns the value in the given slot.
func (s *FactorSet) Get(c FactorCode) decimal.Decimal {
	return s[c]
}

// Set assigns the value of the given slot.
func (s *FactorSet) Set(c FactorCode, v decimal.Decimal) {
	s[c] = v
}

// BaseSum adds up the BASE group (F08..F19).
func (s *FactorSet) BaseSum() decimal.Decimal {
	sum := decimal.Zero
	for c := F08; c <= F19; c++ {
		sum = sum.Add(s[c])
	}
	return sum
}

// Rounding is the explicit fixed-point context for factor computation:
// round half up at a fixed number of fractional digits. It is passed into
// ComputeFactors instead of living in ambient numeric configuration.
type Rounding struct {
	Places int32
}

// FactorRounding is the regulatory precision: 8 fractional digits.
var FactorRounding = Rounding{Places: 8}

// DivRound divides num by den and rounds half up at the configured precision.
// decimal.DivRound rounds half away from zero, which is half up for the
// non-negative amounts this pipeline handles.
func (r Rounding) DivRound(num, den decimal.Decimal) decimal.Decimal {
	return num.DivRound(den, r.Places)
}

// ComputeFactors derives the 30 factor values from the 30 input slots.
//
// In amount mode the BASE and DERIVED slots hold monetary amounts and are
// normalized by the BASE total; DIRECT slots are rates and pass through
// unchanged. A zero BASE total zeroes every BASE and DERIVED factor.
// Outside amount mode the inputs are already factors and pass through
// verbatim for all 30 slots.
//
// The function is pure and deterministic: identical decimal inputs always
// produce identical decimal outputs.
func ComputeFactors(amounts FactorSet, amountMode bool, r Rounding) FactorSet {
	if !amountMode {
		return amounts
	}

	var out FactorSet
	total := amounts.BaseSum()

	for c := F08; c <= F37; c++ {
		switch c.Group() {
		case GroupDirect:
			out[c] = amounts[c]
		default:
			if total.IsPositive() {
				out[c] = r.DivRound(amounts[c], total)
			} else {
				out[c] = decimal.Zero
			}
		}
	}
	return out
}
