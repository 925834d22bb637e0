package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// Credentials is the key/secret/passphrase triple. Owned by the client for
// its lifetime and never logged.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

func (c Credentials) Empty() bool {
	return c.Key == "" || c.Secret == "" || c.Passphrase == ""
}

// Signing headers on private calls.
const (
	headerKey        = "ACCESS-KEY"
	headerTimestamp  = "ACCESS-TIMESTAMP"
	headerPassphrase = "ACCESS-PASSPHRASE"
	headerSignature  = "ACCESS-SIGN"
)

// Sign builds the canonical signing string
// timestamp + method + path [+ "?" + query] + body
// and returns the base64-encoded HMAC-SHA256 over it. Identical inputs
// always yield byte-identical signatures.
func Sign(secret string, timestampMs int64, method, path, query, body string) string {
	prehash := strconv.FormatInt(timestampMs, 10) + method + path
	if query != "" {
		prehash += "?" + query
	}
	prehash += body

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
