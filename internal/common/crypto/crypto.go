// Package crypto 提供收款账号加解密与脱敏工具
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

// SchemePrefix 密文前缀，用于区分密文与历史明文
const SchemePrefix = "enc:v1:"

const keyInfo = "lawyer-bank-account-no"

// 预定义错误
var (
	ErrEmptySecret     = errors.New("secret key must not be empty")
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// SecretCodec 账号加解密器（AES-256-GCM）
type SecretCodec struct {
	aead cipher.AEAD
}

// NewSecretCodec 由配置的密钥派生 32 字节 AES 密钥
func NewSecretCodec(secret string) (*SecretCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretCodec{aead: gcm}, nil
}

// IsEncrypted 是否为带前缀的密文
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, SchemePrefix)
}

// Encrypt 加密明文；已加密的值原样返回
func (c *SecretCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || IsEncrypted(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SchemePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密；无前缀视为历史明文原样返回，密文损坏时返回空串
func (c *SecretCodec) Decrypt(value string) string {
	if !IsEncrypted(value) {
		return value
	}
	plain, err := c.open(strings.TrimPrefix(value, SchemePrefix))
	if err != nil {
		return ""
	}
	return plain
}

func (c *SecretCodec) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrCiphertextShort
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Reseal 解密后重新加密，用于生成提现快照
func (c *SecretCodec) Reseal(value string) (string, error) {
	plain := c.Decrypt(value)
	if plain == "" {
		return "", nil
	}
	return c.Encrypt(plain)
}

// MaskAccountNo 账号脱敏，只保留末 4 位；长度不超过 4 时全部遮盖
func MaskAccountNo(accountNo string) string {
	n := utf8.RuneCountInString(accountNo)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	runes := []rune(accountNo)
	return strings.Repeat("*", n-4) + string(runes[n-4:])
}

// MaskName 户名脱敏，保留首字
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) <= 1 {
		return name
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}
