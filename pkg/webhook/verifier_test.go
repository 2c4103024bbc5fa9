package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testSecret = "whsec_ZmFrZXNlY3JldGtleQ==" // decodes to "fakesecretkey"
	testKey    = "fakesecretkey"
)

// signWithKey builds the provider-side signature independently of the
// implementation under test.
func signWithKey(key, webhookID, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(webhookID + "." + timestamp + "." + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureKnownVector(t *testing.T) {
	v := NewVerifier(testSecret, zaptest.NewLogger(t))

	id := "evt_1"
	ts := "1700000000"
	body := `{"type":"payment.succeeded"}`
	sig := signWithKey(testKey, id, ts, body)

	assert.True(t, v.VerifySignature(id, ts, []byte(body), "v1,"+sig))
	assert.False(t, v.VerifySignature(id, ts, []byte(body), "v1,"+sig+"x"))

	// Sign must produce exactly the header the provider would send.
	header, err := Sign(testSecret, id, ts, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "v1,"+sig, header)
}

func TestVerifySignature(t *testing.T) {
	id := "evt_1"
	ts := "1700000000"
	body := `{"type":"payment.succeeded"}`
	goodSig := signWithKey(testKey, id, ts, body)

	tests := []struct {
		name   string
		secret string
		id     string
		ts     string
		body   string
		header string
		want   bool
	}{
		{
			name:   "valid signature",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1," + goodSig,
			want:   true,
		},
		{
			name:   "rotation entries after the primary are ignored",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1," + goodSig + " v1,Zm9vYmFy",
			want:   true,
		},
		{
			name:   "only the primary entry is checked",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1,Zm9vYmFy v1," + goodSig,
			want:   false,
		},
		{
			name:   "version label is not inspected",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "v2," + goodSig,
			want:   true,
		},
		{
			name:   "tampered body",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   `{"type":"payment.failed"}`,
			header: "v1," + goodSig,
			want:   false,
		},
		{
			name:   "tampered id",
			secret: testSecret,
			id:     "evt_2",
			ts:     ts,
			body:   body,
			header: "v1," + goodSig,
			want:   false,
		},
		{
			name:   "tampered timestamp",
			secret: testSecret,
			id:     id,
			ts:     "1700000001",
			body:   body,
			header: "v1," + goodSig,
			want:   false,
		},
		{
			name:   "empty header",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "",
			want:   false,
		},
		{
			name:   "header without comma",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: goodSig,
			want:   false,
		},
		{
			name:   "header with leading whitespace",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: " v1," + goodSig,
			want:   false,
		},
		{
			name:   "header with empty value",
			secret: testSecret,
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1,",
			want:   false,
		},
		{
			name:   "missing secret",
			secret: "",
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1," + goodSig,
			want:   false,
		},
		{
			name:   "secret without prefix",
			secret: "ZmFrZXNlY3JldGtleQ==",
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1," + goodSig,
			want:   false,
		},
		{
			name:   "secret with undecodable payload",
			secret: "whsec_!!!not-base64!!!",
			id:     id,
			ts:     ts,
			body:   body,
			header: "v1," + goodSig,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(tt.secret, zaptest.NewLogger(t))
			got := v.VerifySignature(tt.id, tt.ts, []byte(tt.body), tt.header)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyTimestamp(t *testing.T) {
	now := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	newVerifier := func(t *testing.T) *Verifier {
		v := NewVerifier(testSecret, zaptest.NewLogger(t))
		v.now = func() time.Time { return now }
		return v
	}

	stamp := func(offset time.Duration) string {
		return strconv.FormatInt(now.Add(offset).Unix(), 10)
	}

	tests := []struct {
		name      string
		timestamp string
		tolerance int
		want      bool
	}{
		{name: "current time", timestamp: stamp(0), tolerance: 0, want: true},
		{name: "exactly at the default window", timestamp: stamp(-180 * time.Second), tolerance: 0, want: true},
		{name: "one second past the default window", timestamp: stamp(-181 * time.Second), tolerance: 0, want: false},
		{name: "future inside the window", timestamp: stamp(180 * time.Second), tolerance: 0, want: true},
		{name: "future beyond the window", timestamp: stamp(181 * time.Second), tolerance: 0, want: false},
		{name: "custom tolerance boundary", timestamp: stamp(-300 * time.Second), tolerance: 5, want: true},
		{name: "custom tolerance exceeded", timestamp: stamp(-301 * time.Second), tolerance: 5, want: false},
		{name: "non-numeric timestamp", timestamp: "not-a-time", tolerance: 0, want: false},
		{name: "empty timestamp", timestamp: "", tolerance: 0, want: false},
		{name: "fractional timestamp", timestamp: "1700000000.5", tolerance: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier(t)
			assert.Equal(t, tt.want, v.VerifyTimestamp(tt.timestamp, tt.tolerance))
		})
	}
}

func TestVerifierNilLogger(t *testing.T) {
	v := NewVerifier(testSecret, nil)

	assert.NotPanics(t, func() {
		v.VerifySignature("evt_1", "not-a-time", []byte("{}"), "garbage")
		v.VerifyTimestamp("not-a-time", 0)
	})
}

func TestSignRejectsMalformedSecrets(t *testing.T) {
	_, err := Sign("ZmFrZXNlY3JldGtleQ==", "evt_1", "1700000000", []byte("{}"))
	require.Error(t, err)

	_, err = Sign("whsec_!!!", "evt_1", "1700000000", []byte("{}"))
	require.Error(t, err)
}
