package linktoken

import (
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService("test-secret", 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestGenerateDeterministic(t *testing.T) {
	svc := newTestService(t)

	first := svc.Generate("42", "7")
	second := svc.Generate("42", "7")
	if first != second {
		t.Errorf("Generate not deterministic: %q vs %q", first, second)
	}
	if len(first) != TokenLength {
		t.Errorf("token length = %d, want %d", len(first), TokenLength)
	}

	other := svc.Generate("42", "8")
	if first == other {
		t.Error("tokens for different clients must differ")
	}

	otherSchedule := svc.Generate("43", "7")
	if first == otherSchedule {
		t.Error("tokens for different schedules must differ")
	}
}

func TestVerify(t *testing.T) {
	svc := newTestService(t)

	token := svc.Generate("42", "7")
	if !svc.Verify("42", "7", token) {
		t.Fatal("Verify rejected a freshly generated token")
	}

	if svc.Verify("42", "8", token) {
		t.Error("Verify accepted a token for the wrong client")
	}
	if svc.Verify("", "7", token) {
		t.Error("Verify accepted a token for the wrong schedule")
	}

	// Any single-character mutation must be rejected.
	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'f' {
			mutated[i] = '0'
		} else {
			mutated[i] = 'f'
		}
		if svc.Verify("42", "7", string(mutated)) {
			t.Errorf("Verify accepted mutated token at position %d", i)
		}
	}
}

func TestTimedTokens(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	token := svc.GenerateTimed("42", "7", now)
	if !svc.VerifyTimed("42", "7", token, now.Add(30*time.Minute)) {
		t.Fatal("VerifyTimed rejected a fresh token")
	}

	if svc.VerifyTimed("42", "7", token, now.Add(2*time.Hour)) {
		t.Error("VerifyTimed accepted an expired token")
	}
	if svc.VerifyTimed("42", "7", token, now.Add(-time.Minute)) {
		t.Error("VerifyTimed accepted a token issued in the future")
	}
	if svc.VerifyTimed("42", "8", token, now) {
		t.Error("VerifyTimed accepted a token for the wrong client")
	}
	if svc.VerifyTimed("42", "7", "not-a-timed-token", now) {
		t.Error("VerifyTimed accepted a token without a timestamp")
	}

	forged := "9999999999." + svc.Generate("42", "7")
	if svc.VerifyTimed("42", "7", forged, time.Unix(9999999999, 0)) {
		t.Error("VerifyTimed accepted a digest computed without the timestamp")
	}

	noExpiry := newTestService(t)
	old := noExpiry.GenerateTimed("42", "7", now.Add(-365*24*time.Hour))
	if !noExpiry.VerifyTimed("42", "7", old, now) {
		t.Error("zero ttl should disable expiry")
	}
}

func TestDifferentSecretsDisagree(t *testing.T) {
	a, err := NewService("secret-a", 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	b, err := NewService("secret-b", 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if a.Generate("42", "7") == b.Generate("42", "7") {
		t.Error("tokens must depend on the secret")
	}
	if b.Verify("42", "7", a.Generate("42", "7")) {
		t.Error("Verify accepted a token from another secret")
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewService("", 0); err == nil {
		t.Error("NewService accepted an empty secret")
	}
	if _, err := NewService("test-secret", -time.Hour); err == nil {
		t.Error("NewService accepted a negative ttl")
	}
}
