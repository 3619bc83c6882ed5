package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	perr "instapilot/internal/platform/errors"
)

// SignatureHeader carries the body HMAC
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// Sign returns the header value for body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// checkSignature compares header against the HMAC of the exact raw body
func checkSignature(secret string, body []byte, header string) error {
	if secret == "" {
		return perr.Unauthorizedf("webhook: no app secret configured")
	}
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, signaturePrefix) {
		return perr.Unauthorizedf("webhook: missing or malformed signature")
	}
	got, err := hex.DecodeString(header[len(signaturePrefix):])
	if err != nil {
		return perr.Unauthorizedf("webhook: malformed signature")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return perr.Unauthorizedf("webhook: signature mismatch")
	}
	return nil
}
