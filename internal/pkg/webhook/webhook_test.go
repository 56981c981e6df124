package webhook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func signedHeader(ts string, body []byte, secret string) string {
	return fmt.Sprintf("t=%s;h1=%s", ts, Sign(ts, body, secret))
}

func TestParseHeader(t *testing.T) {
	sig, err := ParseHeader("t=1700000000;h1=abc;h1=def")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", sig.Timestamp)
	assert.Equal(t, []string{"abc", "def"}, sig.Signatures)
}

func TestParseHeader_Malformed(t *testing.T) {
	for _, h := range []string{"", "garbage", "t=123", "h1=abc", "t=;h1=abc"} {
		_, err := ParseHeader(h)
		assert.ErrorIs(t, err, ErrMalformedHeader, h)
	}
}

func TestVerify_Success(t *testing.T) {
	body := []byte(`{"event_type":"subscription.created"}`)
	assert.NoError(t, Verify(body, signedHeader("1700000000", body, testSecret), testSecret))
}

func TestVerify_FlippedBodyChar(t *testing.T) {
	body := []byte(`{"event_type":"subscription.created"}`)
	header := signedHeader("1700000000", body, testSecret)

	tampered := append([]byte(nil), body...)
	tampered[3] = 'X'
	assert.ErrorIs(t, Verify(tampered, header, testSecret), ErrInvalidSignature)
}

func TestVerify_WrongSecretOrTimestamp(t *testing.T) {
	body := []byte(`{}`)
	header := signedHeader("1700000000", body, "other-secret")
	assert.ErrorIs(t, Verify(body, header, testSecret), ErrInvalidSignature)

	good := Sign("1700000000", body, testSecret)
	assert.ErrorIs(t, Verify(body, "t=1700000001;h1="+good, testSecret), ErrInvalidSignature)
}

func TestVerify_AnyCandidateMatches(t *testing.T) {
	body := []byte(`{"a":1}`)
	header := fmt.Sprintf("t=42;h1=%s;h1=%s", "deadbeef", Sign("42", body, testSecret))
	assert.NoError(t, Verify(body, header, testSecret))
}

func TestPolicy(t *testing.T) {
	body := []byte(`{}`)
	header := signedHeader("1", body, testSecret)

	tests := []struct {
		name    string
		policy  Policy
		header  string
		body    []byte
		outcome Outcome
		wantErr error
	}{
		{"lenient missing header", Policy{Secret: testSecret}, "", body, Skipped, nil},
		{"lenient missing secret", Policy{}, header, body, Skipped, nil},
		{"strict missing header", Policy{Secret: testSecret, Strict: true}, "", body, Skipped, ErrMissingSignature},
		{"strict missing secret", Policy{Strict: true}, header, body, Skipped, ErrMissingSignature},
		{"valid", Policy{Secret: testSecret}, header, body, Verified, nil},
		{"mismatch lenient", Policy{Secret: testSecret}, header, []byte(`{"x":1}`), Verified, ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := tt.policy.Check(tt.body, tt.header)
			assert.Equal(t, tt.outcome, outcome)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
