// Package auth provides bearer-token verification for the admin console.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"
)

// Verifier validates tokens and extracts the caller's role.
// Modes: dev (token is "role:subject", unverified) and hmac (HS256 JWT).
type Verifier struct {
	Mode       string
	HMACSecret []byte
}

type Principal struct {
	Role    string
	Subject string
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(os.Getenv("AUTH_HMAC_SECRET"))}
}

var ErrInvalidToken = errors.New("invalid token")

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		role, sub, _ := strings.Cut(token, ":")
		if role == "" {
			return Principal{}, ErrInvalidToken
		}
		return Principal{Role: role, Subject: sub}, nil
	case "hmac":
		return v.verifyHS256(token)
	}
	return Principal{}, errors.New("unsupported auth mode: " + v.Mode)
}

func (v *Verifier) verifyHS256(token string) (Principal, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Principal{}, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Principal{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	var claims struct {
		Role string `json:"role"`
		Sub  string `json:"sub"`
		Exp  int64  `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Principal{}, ErrInvalidToken
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return Principal{}, errors.New("token expired")
	}
	return Principal{Role: claims.Role, Subject: claims.Sub}, nil
}
