package crypto

import (
	"strings"
	"testing"
)

func TestNewAPIToken_PrefixAndUniqueness(t *testing.T) {
	a, err := NewAPIToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewAPIToken()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(a, TokenPrefix) {
		t.Fatalf("token %q missing prefix", a)
	}
	if a == b {
		t.Fatalf("two tokens identical")
	}
}

func TestHashAPIToken_PepperChangesHash(t *testing.T) {
	raw := "bn_example"
	h1 := HashAPIToken(raw, []byte("pepper-a"))
	h2 := HashAPIToken(raw, []byte("pepper-b"))
	h3 := HashAPIToken(raw, []byte("pepper-a"))

	if string(h1) == string(h2) {
		t.Fatal("different peppers produced same hash")
	}
	if string(h1) != string(h3) {
		t.Fatal("same inputs produced different hashes")
	}
}
