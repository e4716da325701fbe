package twilio

import (
	"net/http"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the HMAC Twilio signs every webhook with.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks Twilio webhook signatures.
type SignatureValidator struct {
	validator client.RequestValidator
}

func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: client.NewRequestValidator(authToken)}
}

// ValidateRequest verifies a parsed form POST against its public URL.
func (v *SignatureValidator) ValidateRequest(r *http.Request, publicURL string) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return v.validator.Validate(publicURL, params, signature)
}
