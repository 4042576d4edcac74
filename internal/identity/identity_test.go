package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret-key")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	id := uuid.New()
	token, err := iss.Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != id {
		t.Fatalf("verified id %s, want %s", got, id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewIssuer("secret-a")
	b, _ := NewIssuer("secret-b")

	token, err := a.Issue(uuid.New())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Fatalf("token signed by another key was accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss, _ := NewIssuer("test-secret-key")
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := iss.Verify(tok); err == nil {
			t.Fatalf("garbage token %q was accepted", tok)
		}
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewIssuer("   "); err == nil {
		t.Fatalf("blank secret was accepted")
	}
}
