package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	linewebhook "github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/teilomillet/zooly/errors"
)

// SignatureHeader is the header LINE puts the delivery signature in.
const SignatureHeader = "X-Line-Signature"

// errSignature is the only error VerifySignature returns. No detail about
// the mismatch leaves this package.
var errSignature = errors.NewAuthenticationError("", "invalid webhook signature", nil)

// VerifySignature checks signature against base64(HMAC-SHA256(secret, body)).
// Returns nil if the signature is valid.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return errSignature
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errSignature
	}

	if !linewebhook.ValidateSignature(secret, signature, body) {
		return errSignature
	}
	return nil
}

// Sign returns the X-Line-Signature value for body under secret, as the
// platform computes it. Used to build signed deliveries in tests and tools.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
