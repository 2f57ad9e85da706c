package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader: заголовок, в котором CryptoPay присылает подпись вебхука.
const SignatureHeader = "crypto-pay-api-signature"

// Sign считает hex(HMAC-SHA256(body)) с ключом SHA256(token).
func Sign(token string, body []byte) string {
	secret := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время. Регистр hex не важен.
func VerifySignature(token string, body []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(token, body)), []byte(signature))
}
