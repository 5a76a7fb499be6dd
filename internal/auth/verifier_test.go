package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func signHS256(secret []byte, payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(header + "." + body))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + body + "." + sig
}

func TestDevMode(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	pr, err := v.Verify("dispatcher:ops-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pr.Role != "dispatcher" || pr.Subject != "ops-1" {
		t.Fatalf("principal: %+v", pr)
	}
	if _, err := v.Verify(""); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestHMACMode(t *testing.T) {
	secret := []byte("topsecret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret}

	tok := signHS256(secret, fmt.Sprintf(`{"role":"admin","sub":"u1","exp":%d}`, time.Now().Add(time.Hour).Unix()))
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pr.Role != "admin" || pr.Subject != "u1" {
		t.Fatalf("principal: %+v", pr)
	}

	if _, err := v.Verify(signHS256([]byte("wrong"), `{"role":"admin"}`)); err == nil {
		t.Fatal("bad signature accepted")
	}

	expired := signHS256(secret, fmt.Sprintf(`{"role":"admin","exp":%d}`, time.Now().Add(-time.Hour).Unix()))
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expired token accepted")
	}

	if _, err := v.Verify("not.a"); err == nil {
		t.Fatal("malformed token accepted")
	}
}
