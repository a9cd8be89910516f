package infrastructure

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ValidWebhookChallenge checks the Meta verification handshake parameters.
func ValidWebhookChallenge(mode, challenge string) bool {
	return mode == "subscribe" && challenge != ""
}

// ValidWebhookSignature verifies the X-Hub-Signature-256 header against the
// raw request body using the account's app secret. The header carries a
// "sha256=" prefix.
func ValidWebhookSignature(body []byte, header, appSecret string) bool {
	if header == "" || appSecret == "" {
		return false
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
