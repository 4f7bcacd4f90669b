package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

func TestCriticalKinds(t *testing.T) {
	cases := []struct {
		validator models.ValidatorType
		want      error
	}{
		{models.ValidatorRateLimit, ErrRateLimited},
		{models.ValidatorDuplicate, ErrDuplicate},
		{models.ValidatorTime, ErrValidationFailed},
	}
	for _, tc := range cases {
		summary := &models.ValidationSummary{Critical: true, CriticalType: tc.validator}
		err := fmt.Errorf("submit: %w", Critical(summary))
		if !errors.Is(err, tc.want) {
			t.Fatalf("Critical(%s): got %v, want kind %v", tc.validator, err, tc.want)
		}
		if SummaryOf(err) != summary {
			t.Fatalf("SummaryOf(%s): summary not carried", tc.validator)
		}
	}
}

func TestInternalWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("save report", cause)
	if !errors.Is(err, ErrInternal) || !errors.Is(err, cause) {
		t.Fatalf("Internal: %v does not match both kind and cause", err)
	}
	if got := err.Error(); got != "save report: disk full" {
		t.Fatalf("Error(): got %q", got)
	}
}
