package websub

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the X-Hub-Signature header against the raw request
// body. The hub signs with HMAC-SHA1 and sends "sha1=<hex digest>"; the
// comparison is constant-time.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "sha1=") {
		return false
	}
	received, err := hex.DecodeString(header[len("sha1="):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}
