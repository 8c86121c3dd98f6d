package registry_test

import (
	"testing"

	"github.com/TheTrueAI/stellenscout/internal/registry"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"pending", "active", "expired", "unsubscribed"}
	for _, s := range valid {
		got, err := registry.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	_, err := registry.ParseStatus("deleted")
	if err == nil {
		t.Error("ParseStatus(\"deleted\") expected error, got nil")
	}
}

func TestParseStatus_EmptyString(t *testing.T) {
	_, err := registry.ParseStatus("")
	if err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

// ParseStatus must be case-sensitive — the column stores lowercase values.
func TestParseStatus_CaseSensitive(t *testing.T) {
	uppercase := []string{"PENDING", "Active", "EXPIRED", "Unsubscribed"}
	for _, s := range uppercase {
		_, err := registry.ParseStatus(s)
		if err == nil {
			t.Errorf("ParseStatus(%q) should reject non-lowercase value, got nil error", s)
		}
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	for _, s := range []registry.Status{registry.StatusExpired, registry.StatusUnsubscribed} {
		if !registry.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return true", s)
		}
	}
	for _, s := range []registry.Status{registry.StatusPending, registry.StatusActive} {
		if registry.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return false", s)
		}
	}
}

// ── IsTransitionAllowed — valid transitions ────────────────────────────────

func TestIsTransitionAllowed_Valid(t *testing.T) {
	cases := []struct {
		from registry.Status
		to   registry.Status
	}{
		{registry.StatusPending, registry.StatusActive},
		{registry.StatusActive, registry.StatusExpired},
		{registry.StatusActive, registry.StatusUnsubscribed},
	}
	for _, c := range cases {
		if !registry.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed — terminal states have no outgoing transitions ─────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []registry.Status{registry.StatusExpired, registry.StatusUnsubscribed}
	targets := []registry.Status{
		registry.StatusPending,
		registry.StatusActive,
		registry.StatusExpired,
		registry.StatusUnsubscribed,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if registry.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── IsTransitionAllowed — pending can only activate ────────────────────────

func TestIsTransitionAllowed_PendingOnlyActivates(t *testing.T) {
	forbidden := []registry.Status{
		registry.StatusPending,
		registry.StatusExpired,
		registry.StatusUnsubscribed,
	}
	for _, to := range forbidden {
		if registry.IsTransitionAllowed(registry.StatusPending, to) {
			t.Errorf("IsTransitionAllowed(pending → %s) should be false", to)
		}
	}
}

// ── IsTransitionAllowed — backwards and self movements are forbidden ───────

func TestIsTransitionAllowed_Backwards(t *testing.T) {
	cases := []struct {
		from registry.Status
		to   registry.Status
	}{
		{registry.StatusActive, registry.StatusPending},
		{registry.StatusExpired, registry.StatusActive},
		{registry.StatusUnsubscribed, registry.StatusActive},
	}
	for _, c := range cases {
		if registry.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (backwards)", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []registry.Status{
		registry.StatusPending, registry.StatusActive,
		registry.StatusExpired, registry.StatusUnsubscribed,
	}
	for _, s := range all {
		if registry.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}

// ── IsTransitionAllowed — unknown statuses never transition ────────────────

func TestIsTransitionAllowed_UnknownStatus(t *testing.T) {
	if registry.IsTransitionAllowed(registry.Status("deleted"), registry.StatusActive) {
		t.Error("IsTransitionAllowed(deleted → active) should be false (unknown from)")
	}
	if registry.IsTransitionAllowed(registry.StatusPending, registry.Status("deleted")) {
		t.Error("IsTransitionAllowed(pending → deleted) should be false (unknown to)")
	}
}
