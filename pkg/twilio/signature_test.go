package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateRequest(t *testing.T) {
	const token = "secret-token"
	const fullURL = "https://bridge.example.com/twilio/status/c1"
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}}

	req := httptest.NewRequest("POST", "/twilio/status/c1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sign(token, fullURL, form))
	_ = req.ParseForm()

	v := NewSignatureValidator(token)
	assert.True(t, v.ValidateRequest(req, fullURL))

	req.Header.Set(SignatureHeader, sign("other", fullURL, form))
	assert.False(t, v.ValidateRequest(req, fullURL))

	req.Header.Del(SignatureHeader)
	assert.False(t, v.ValidateRequest(req, fullURL))
}
