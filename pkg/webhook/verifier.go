package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// SecretPrefix is the version tag carried by provider-issued webhook secrets.
	// Only the portion after the prefix is base64-decoded into key bytes.
	SecretPrefix = "whsec_"

	// DefaultToleranceMinutes bounds the replay window when the caller does
	// not override it.
	DefaultToleranceMinutes = 3
)

// Verifier checks that an inbound webhook notification is fresh and was
// signed by the payment provider. It is constructed once at startup with
// the configured secret and is safe for concurrent use; both checks are
// pure functions over their arguments and the immutable secret.
//
// Both checks fail closed: every failure mode (missing secret, malformed
// header, decode error) yields false. They never panic and never return
// an error, so callers need no recovery around them.
type Verifier struct {
	secret string
	logger *zap.Logger
	now    func() time.Time
}

// NewVerifier creates a verifier for the given provider secret. The secret
// is expected in its stored form, prefix included (whsec_<base64>).
func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		secret: secret,
		logger: logger,
		now:    time.Now,
	}
}

// VerifyTimestamp reports whether the webhook timestamp, a Unix time in
// seconds as received on the wire, is within toleranceMinutes of now in
// either direction. The boundary is inclusive. toleranceMinutes <= 0
// selects DefaultToleranceMinutes. A non-numeric timestamp is invalid,
// never an error.
func (v *Verifier) VerifyTimestamp(timestamp string, toleranceMinutes int) bool {
	if toleranceMinutes <= 0 {
		toleranceMinutes = DefaultToleranceMinutes
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		v.logger.Warn("Webhook timestamp is not numeric, rejecting",
			zap.String("timestamp", timestamp))
		return false
	}

	diff := v.now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}

	return diff <= int64(toleranceMinutes)*60
}

// VerifySignature reports whether the signature header authenticates the
// webhook. The signed content is the exact concatenation
// "{webhookID}.{timestamp}.{body}" over the raw body bytes as received;
// re-serializing a parsed body breaks verification. The header carries
// space-separated "version,value" entries and only the first (primary)
// entry is checked. Comparison is constant-time.
func (v *Verifier) VerifySignature(webhookID, timestamp string, body []byte, signatureHeader string) bool {
	key, ok := v.decodeSecret()
	if !ok {
		return false
	}

	received, ok := primarySignature(signatureHeader)
	if !ok {
		v.logger.Warn("Webhook signature header is malformed, rejecting",
			zap.String("webhook_id", webhookID))
		return false
	}

	expected := computeSignature(key, webhookID, timestamp, body)

	return hmac.Equal([]byte(expected), []byte(received))
}

// decodeSecret strips the version prefix and base64-decodes the remainder
// into raw key bytes. A missing, unprefixed, or undecodable secret is a
// configuration error and rejects verification instead of crashing.
func (v *Verifier) decodeSecret() ([]byte, bool) {
	if v.secret == "" {
		v.logger.Warn("Webhook secret is not configured, rejecting webhook")
		return nil, false
	}

	encoded, found := strings.CutPrefix(v.secret, SecretPrefix)
	if !found {
		v.logger.Warn("Webhook secret does not carry the expected prefix, rejecting webhook")
		return nil, false
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		v.logger.Warn("Webhook secret is not valid base64, rejecting webhook",
			zap.Error(err))
		return nil, false
	}

	return key, true
}

// primarySignature extracts the value of the first "version,value" entry.
// Providers append further entries during key rotation; those are ignored.
func primarySignature(header string) (string, bool) {
	if header == "" {
		return "", false
	}

	first := header
	if i := strings.IndexByte(header, ' '); i >= 0 {
		first = header[:i]
	}

	_, value, found := strings.Cut(first, ",")
	if !found || value == "" {
		return "", false
	}

	return value, true
}

func computeSignature(key []byte, webhookID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(webhookID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign produces the signature header value ("v1,<base64>") the provider
// would send for the given content. Intended for tests and local webhook
// simulation; unlike verification it reports malformed secrets as errors.
func Sign(secret, webhookID, timestamp string, body []byte) (string, error) {
	encoded, found := strings.CutPrefix(secret, SecretPrefix)
	if !found {
		return "", fmt.Errorf("webhook secret must start with %q", SecretPrefix)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode webhook secret: %w", err)
	}

	return "v1," + computeSignature(key, webhookID, timestamp, body), nil
}
