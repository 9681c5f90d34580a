package devauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestVerifyPKCEPlain(t *testing.T) {
	if !VerifyPKCE("verifier123", "verifier123", "plain") {
		t.Fatal("expected plain match to verify")
	}
	if VerifyPKCE("verifier123", "other", "plain") {
		t.Fatal("expected mismatched plain verifier to fail")
	}
}

func TestVerifyPKCEDefaultsToPlain(t *testing.T) {
	if !VerifyPKCE("abc", "abc", "") {
		t.Fatal("expected empty method to behave as plain")
	}
}

func TestVerifyPKCES256(t *testing.T) {
	verifier := "a-random-code-verifier-of-sufficient-length"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	if !VerifyPKCE(verifier, challenge, "S256") {
		t.Fatal("expected S256 challenge to verify")
	}
	if VerifyPKCE("wrong-verifier", challenge, "S256") {
		t.Fatal("expected wrong verifier to fail S256 verification")
	}
}

func TestVerifyPKCERejectsEmpty(t *testing.T) {
	if VerifyPKCE("", "challenge", "plain") {
		t.Fatal("expected empty verifier to fail")
	}
	if VerifyPKCE("verifier", "", "plain") {
		t.Fatal("expected empty challenge to fail")
	}
}

func TestVerifyPKCEUnknownMethod(t *testing.T) {
	if VerifyPKCE("v", "v", "md5") {
		t.Fatal("expected unknown method to fail closed")
	}
}
