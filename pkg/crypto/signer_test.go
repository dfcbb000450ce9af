package crypto

import "testing"

type payload struct {
	PlanID        string `json:"plan_id"`
	ClinicID      string `json:"clinic_id"`
	HMACSignature string `json:"hmac_signature"`
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("secret-a")
	p := payload{PlanID: "p1", ClinicID: "c1"}

	sig, err := s.Sign(p)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected 64-char hex signature, got %d", len(sig))
	}
	p.HMACSignature = sig

	ok, err := s.Verify(p, p.HMACSignature)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyFailsWithDifferentSecret(t *testing.T) {
	s1 := NewSigner("secret-a")
	s2 := NewSigner("secret-b")
	p := payload{PlanID: "p1"}

	sig, err := s1.Sign(p)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	ok, err := s2.Verify(p, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatalf("expected verification to fail across different secrets")
	}
}

func TestVerifyFailsWhenFieldMutated(t *testing.T) {
	s := NewSigner("secret-a")
	p := payload{PlanID: "p1", ClinicID: "c1"}

	sig, err := s.Sign(p)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	p.ClinicID = "tampered"
	ok, err := s.Verify(p, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatalf("expected verification to fail after mutating a signed field")
	}
}

func TestVerifyEmptySignatureFails(t *testing.T) {
	s := NewSigner("secret-a")
	ok, err := s.Verify(payload{PlanID: "p1"}, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatalf("expected empty signature to fail verification")
	}
}

func TestSignWithoutSecretReturnsErrNoSecret(t *testing.T) {
	s := NewSigner("")
	_, err := s.Sign(payload{PlanID: "p1"})
	if err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
