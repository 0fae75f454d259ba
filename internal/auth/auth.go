// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// CookieSigner 用 HMAC-SHA256 签名会话ID，防止客户端伪造或猜测他人会话
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner 创建签名器；secret 为空时生成随机密钥（重启后旧 cookie 失效）
func NewCookieSigner(secret []byte) (*CookieSigner, error) {
	if len(secret) == 0 {
		key, err := GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		secret = key
	}
	return &CookieSigner{secret: secret}, nil
}

func (s *CookieSigner) mac(value string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return h.Sum(nil)
}

// Sign 返回 "<id>.<signature>"
func (s *CookieSigner) Sign(sessionID string) string {
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(s.mac(sessionID))
}

// Verify 校验签名并返回会话ID
func (s *CookieSigner) Verify(value string) (string, error) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", fmt.Errorf("invalid cookie format")
	}
	sessionID, encoded := value[:idx], value[idx+1:]

	signature, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid cookie signature: %w", err)
	}
	if !hmac.Equal(signature, s.mac(sessionID)) {
		return "", fmt.Errorf("invalid cookie signature")
	}
	return sessionID, nil
}

// GenerateSecureKey generates a secure random key for cookie signing
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32 // Default to 256 bits
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
