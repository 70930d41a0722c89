// Package crypto 加密工具单元测试
package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *SecretCodec {
	t.Helper()
	c, err := NewSecretCodec("unit-test-secret")
	require.NoError(t, err)
	return c
}

func TestNewSecretCodec_EmptySecret(t *testing.T) {
	_, err := NewSecretCodec("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSecretCodec_RoundTrip(t *testing.T) {
	c := newCodec(t)

	for _, plain := range []string{"6222333344445555", "alipay@example.com", "1", "张三的账户"} {
		t.Run(plain, func(t *testing.T) {
			enc, err := c.Encrypt(plain)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(enc, SchemePrefix))
			assert.NotContains(t, enc, plain)
			assert.Equal(t, plain, c.Decrypt(enc))
		})
	}
}

func TestSecretCodec_EncryptIdempotent(t *testing.T) {
	c := newCodec(t)

	enc, err := c.Encrypt("6222333344445555")
	require.NoError(t, err)

	again, err := c.Encrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, enc, again)

	empty, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestSecretCodec_NonceIsRandom(t *testing.T) {
	c := newCodec(t)
	a, _ := c.Encrypt("6222333344445555")
	b, _ := c.Encrypt("6222333344445555")
	assert.NotEqual(t, a, b)
}

func TestSecretCodec_Decrypt(t *testing.T) {
	c := newCodec(t)

	t.Run("历史明文原样返回", func(t *testing.T) {
		assert.Equal(t, "6222000011112222", c.Decrypt("6222000011112222"))
	})

	t.Run("非法 base64 返回空串", func(t *testing.T) {
		assert.Equal(t, "", c.Decrypt(SchemePrefix+"%%%not-base64"))
	})

	t.Run("密文过短返回空串", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("abc"))
		assert.Equal(t, "", c.Decrypt(SchemePrefix+short))
	})

	t.Run("其他密钥加密的密文返回空串", func(t *testing.T) {
		other, err := NewSecretCodec("another-secret")
		require.NoError(t, err)
		enc, err := other.Encrypt("6222333344445555")
		require.NoError(t, err)
		assert.Equal(t, "", c.Decrypt(enc))
	})
}

func TestSecretCodec_Reseal(t *testing.T) {
	c := newCodec(t)

	enc, _ := c.Encrypt("6222333344445555")
	resealed, err := c.Reseal(enc)
	require.NoError(t, err)
	assert.NotEqual(t, enc, resealed)
	assert.Equal(t, "6222333344445555", c.Decrypt(resealed))

	fromPlain, err := c.Reseal("6222000011112222")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(fromPlain))
}

func TestMaskAccountNo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"6222333344445555", "************5555"},
		{"12345", "*2345"},
		{"1234", "****"},
		{"12", "**"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskAccountNo(tt.in))
		})
	}

	masked := MaskAccountNo("6222333344445555")
	assert.True(t, strings.HasSuffix(masked, "5555"))
	assert.Equal(t, "5555", strings.Trim(masked, "*"))
}

func TestMaskName(t *testing.T) {
	assert.Equal(t, "张*", MaskName("张三"))
	assert.Equal(t, "李", MaskName("李"))
}
