package services

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBaseSumBoundary(t *testing.T) {
	// Exactly the tolerance edge is accepted.
	var atEdge FactorSet
	atEdge.Set(F08, dec(t, "1.00000001"))
	if sum, err := ValidateBaseSum(&atEdge); err != nil {
		t.Errorf("sum %s rejected, want accepted", sum)
	}

	// One ulp above is rejected.
	var above FactorSet
	above.Set(F08, dec(t, "1.00000002"))
	sum, err := ValidateBaseSum(&above)
	if err == nil {
		t.Fatalf("sum %s accepted, want rejected", sum)
	}

	var violation *ConstraintViolation
	if !errors.As(err, &violation) {
		t.Fatalf("error is %T, want *ConstraintViolation", err)
	}
	if !violation.Sum.Equal(dec(t, "1.00000002")) {
		t.Errorf("violation carries sum %s, want 1.00000002", violation.Sum)
	}
	if !strings.Contains(violation.Error(), "Suma de factores base") {
		t.Errorf("unexpected message %q", violation.Error())
	}
}

func TestValidateBaseSumIgnoresOtherGroups(t *testing.T) {
	// Huge DERIVED and DIRECT values never trip the BASE ceiling.
	var factors FactorSet
	factors.Set(F08, dec(t, "0.5"))
	factors.Set(F20, dec(t, "9.99"))
	factors.Set(F37, dec(t, "100"))

	if sum, err := ValidateBaseSum(&factors); err != nil {
		t.Errorf("sum %s rejected, want accepted", sum)
	}
}

func TestValidateBaseSumSpreadAcrossGroup(t *testing.T) {
	var factors FactorSet
	for c := F08; c <= F19; c++ {
		factors.Set(c, dec(t, "0.1")) // 12 slots → 1.2
	}
	if _, err := ValidateBaseSum(&factors); err == nil {
		t.Error("sum 1.2 accepted, want rejected")
	}
}
