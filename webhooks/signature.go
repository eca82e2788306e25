package webhooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const SignaturePrefix = "sha256="

// Canonicalize renders payload as compact JSON with object keys sorted. Numbers
// keep their literal text and HTML characters are not escaped, so the output
// matches what JSON.stringify produces for a key-sorted object.
func Canonicalize(payload any) ([]byte, error) {
	var raw []byte
	switch typed := payload.(type) {
	case nil:
		return nil, fmt.Errorf("webhooks: payload is required")
	case []byte:
		raw = typed
	case json.RawMessage:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("webhooks: encode payload: %w", err)
		}
		raw = encoded
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("webhooks: decode payload: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("webhooks: payload has trailing data")
	}

	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, fmt.Errorf("webhooks: encode canonical payload: %w", err)
	}
	return bytes.TrimRight(out.Bytes(), "\n"), nil
}

// Sign returns the `sha256=<hex>` signature of the canonical form of payload.
func Sign(payload any, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("webhooks: secret is required")
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return SignBody(canonical, secret), nil
}

// SignBody signs body exactly as given.
func SignBody(body []byte, secret string) string {
	return SignaturePrefix + hex.EncodeToString(computeMAC(body, secret))
}

// Verify reports whether signature matches payload under secret. It never
// fails loudly: malformed input of any kind is simply not a match.
func Verify(payload any, signature string, secret string) bool {
	switch typed := payload.(type) {
	case []byte:
		return VerifyBody(typed, signature, secret)
	case json.RawMessage:
		return VerifyBody(typed, signature, secret)
	}
	if !wellFormed(signature) || secret == "" {
		return false
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	return equalSignatures(signature, SignBody(canonical, secret))
}

// VerifyBody checks a raw request body. The signature may cover the body as
// sent, its compact form (sender key order), or its canonical form.
func VerifyBody(body []byte, signature string, secret string) bool {
	if !wellFormed(signature) || secret == "" || len(body) == 0 {
		return false
	}

	matched := equalSignatures(signature, SignBody(body, secret))

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil && !bytes.Equal(compact.Bytes(), body) {
		if equalSignatures(signature, SignBody(compact.Bytes(), secret)) {
			matched = true
		}
	}
	if canonical, err := Canonicalize(body); err == nil {
		if equalSignatures(signature, SignBody(canonical, secret)) {
			matched = true
		}
	}
	return matched
}

// wellFormed accepts only the exact `sha256=` + 64 lowercase hex form.
func wellFormed(signature string) bool {
	if len(signature) != len(SignaturePrefix)+hex.EncodedLen(sha256.Size) {
		return false
	}
	if !strings.HasPrefix(signature, SignaturePrefix) {
		return false
	}
	for _, c := range signature[len(SignaturePrefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func equalSignatures(provided string, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func computeMAC(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
