package mirror

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// newSigningKey generates a throwaway PGP entity and returns it along with
// its ASCII-armored public keyring.
func newSigningKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Test Archive", "test", "archive@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return entity, buf.String()
}

func clearsignBytes(t *testing.T, entity *openpgp.Entity, body []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, entity.PrivateKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return out.Bytes()
}

func TestVerifiedRelease(t *testing.T) {
	entity, keyring := newSigningKey(t)

	release := []byte("Origin: Test\nSuite: stable\nCodename: bookworm\nArchitectures: amd64 arm64\n")
	inRelease := clearsignBytes(t, entity, release)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dists/stable/InRelease" {
			w.Write(inRelease)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	repo := Repo{URL: ts.URL}
	rel, err := repo.VerifiedRelease(keyring)
	if err != nil {
		t.Fatalf("VerifiedRelease failed: %v", err)
	}
	if rel.Codename != "bookworm" {
		t.Errorf("expected codename bookworm, got %q", rel.Codename)
	}
	if len(rel.Architectures) != 2 {
		t.Errorf("architectures mismatch: %v", rel.Architectures)
	}
}

func TestVerifiedRelease_WrongKey(t *testing.T) {
	entity, _ := newSigningKey(t)
	_, otherKeyring := newSigningKey(t)

	inRelease := clearsignBytes(t, entity, []byte("Suite: stable\nArchitectures: amd64\n"))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(inRelease)
	}))
	defer ts.Close()

	repo := Repo{URL: ts.URL}
	if _, err := repo.VerifiedRelease(otherKeyring); err == nil {
		t.Error("expected signature verification to fail with the wrong keyring")
	}
}

func TestVerifiedRelease_NotSigned(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Suite: stable\nArchitectures: amd64\n")
	}))
	defer ts.Close()

	_, keyring := newSigningKey(t)
	repo := Repo{URL: ts.URL}
	if _, err := repo.VerifiedRelease(keyring); err == nil {
		t.Error("expected error for unsigned InRelease body")
	}
}
