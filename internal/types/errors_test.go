package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_MessageFormat(t *testing.T) {
	err := NewAppError(ErrCodeLedgerRead, "get master row", errors.New("throttled"))
	want := "[ledger_read_failed] get master row: throttled"
	if err.Error() != want {
		t.Fatalf("Error = %q, want %q", err.Error(), want)
	}

	bare := NewAppError(ErrCodeConfigMissing, "LEDGER_TABLE is unset", nil)
	want = "[config_missing_value] LEDGER_TABLE is unset"
	if bare.Error() != want {
		t.Fatalf("Error = %q, want %q", bare.Error(), want)
	}
}

func TestIsNotFound_ThroughWrapping(t *testing.T) {
	err := NewAppError(ErrCodeNotFoundMaster, "no master row for abc123", ErrNotFound)
	if !IsNotFound(err) {
		t.Fatal("wrapped ErrNotFound not detected")
	}

	wrapped := fmt.Errorf("process post: %w", err)
	if !IsNotFound(wrapped) {
		t.Fatal("double-wrapped ErrNotFound not detected")
	}

	if IsNotFound(NewAppError(ErrCodeLedgerRead, "throttled", errors.New("throttled"))) {
		t.Fatal("unrelated error reported as NotFound")
	}
}

func TestCodeOf(t *testing.T) {
	err := NewAppError(ErrCodeUpstreamTwitter, "rate limited", nil)
	if got := CodeOf(err); got != ErrCodeUpstreamTwitter {
		t.Fatalf("CodeOf = %s, want %s", got, ErrCodeUpstreamTwitter)
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if got := CodeOf(wrapped); got != ErrCodeUpstreamTwitter {
		t.Fatalf("CodeOf through wrapping = %s", got)
	}

	if got := CodeOf(errors.New("bare")); got != ErrCodeInternal {
		t.Fatalf("CodeOf(bare) = %s, want %s", got, ErrCodeInternal)
	}
}

func TestSecretString_Redaction(t *testing.T) {
	secret := SecretString("super-secret-token")

	if secret.String() != "***REDACTED***" {
		t.Fatalf("String = %q, must be redacted", secret.String())
	}
	if fmt.Sprintf("%v", secret) != "***REDACTED***" {
		t.Fatal("formatted value must be redacted")
	}

	body, err := secret.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(body) != `"***REDACTED***"` {
		t.Fatalf("MarshalJSON = %s, must be redacted", body)
	}

	if secret.Unmask() != "super-secret-token" {
		t.Fatal("Unmask must return the plaintext")
	}
}
