package stripepay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyHMAC verifies a received HMAC signature against the expected one.
func VerifyHMAC(key, message, receivedHMAC string) bool {
	expectedHMAC := Hmac256([]byte(message), []byte(key))
	return hmac.Equal([]byte(receivedHMAC), []byte(expectedHMAC))
}
