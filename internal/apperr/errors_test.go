package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesKindAndOptionalCode(t *testing.T) {
	err := Conflict(CodePaymentRefInUse, "payment reference %s already used", "tx-1")
	wrapped := fmt.Errorf("mark paid: %w", err)

	if !errors.Is(wrapped, ErrConflict) {
		t.Fatal("expected wrapped error to match ErrConflict")
	}
	if errors.Is(wrapped, ErrVersionConflict) {
		t.Fatal("payment conflict must not match the version conflict sentinel")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Fatal("payment conflict must not match validation")
	}
	if !errors.Is(VersionConflict("campaign", 1), ErrVersionConflict) {
		t.Fatal("expected version conflict to match its sentinel")
	}
}

func TestTransientKeepsCause(t *testing.T) {
	cause := VersionConflict("campaign", "c-1")
	err := Transient(CodeRetryExhausted, cause, "gave up")

	if KindOf(err) != KindTransient {
		t.Fatalf("kind = %s, want %s", KindOf(err), KindTransient)
	}
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatal("expected cause to be reachable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: Validation(CodeInvalidAmount, "bad"), want: http.StatusBadRequest},
		{err: InvalidState(CodeCampaignNotActive, "closed"), want: http.StatusUnprocessableEntity},
		{err: Conflict(CodeDuplicate, "dup"), want: http.StatusConflict},
		{err: Forbidden(CodeNotOwner, "no"), want: http.StatusForbidden},
		{err: NotFound(CodeCampaignNotFound, "missing"), want: http.StatusNotFound},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err).HTTPStatus(); got != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageOfHidesInternalErrors(t *testing.T) {
	if got := MessageOf(errors.New("dial tcp 10.0.0.1:5432")); got != "internal error" {
		t.Fatalf("message = %q", got)
	}
	if got := MessageOf(NotFound(CodeCampaignNotFound, "campaign not found")); got != "campaign not found" {
		t.Fatalf("message = %q", got)
	}
}
