package vault

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchangelink/internal/errs"
	"exchangelink/models"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-secret", "test-salt", 1000)
	require.NoError(t, err)
	return v
}

func TestNewRejectsMissingSecretOrSalt(t *testing.T) {
	_, err := New("", "salt", 10)
	assert.Error(t, err)
	_, err = New("secret", "", 10)
	assert.Error(t, err)
}

func TestRoundTripPrintableASCII(t *testing.T) {
	v := newTestVault(t)
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := r.Intn(256)
		b := make([]byte, n)
		for j := range b {
			b[j] = byte(32 + r.Intn(95))
		}
		plain := string(b)

		token, err := v.Encrypt(plain)
		require.NoError(t, err)
		assert.Equal(t, 3, len(strings.Split(token, ":")))

		got, err := v.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	v := newTestVault(t)
	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func flipHex(c byte) byte {
	if c == '0' {
		return '1'
	}
	return '0'
}

func TestTamperingYieldsAuthenticationError(t *testing.T) {
	v := newTestVault(t)
	token, err := v.Encrypt("api-secret-value")
	require.NoError(t, err)

	for _, idx := range []int{0, 33, 40, len(token) - 1} {
		b := []byte(token)
		if b[idx] == ':' {
			continue
		}
		b[idx] = flipHex(b[idx])
		_, err := v.Decrypt(string(b))
		assert.ErrorIs(t, err, errs.ErrAuthentication, "index %d", idx)
	}
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	v := newTestVault(t)
	other, err := New("other-secret", "test-salt", 1000)
	require.NoError(t, err)

	token, err := v.Encrypt("hello")
	require.NoError(t, err)
	_, err = other.Decrypt(token)
	assert.ErrorIs(t, err, errs.ErrAuthentication)
}

func TestDecryptFormatErrors(t *testing.T) {
	v := newTestVault(t)
	cases := []string{
		"",
		"abc",
		"a:b",
		"a:b:c:d",
		"zz:00:00",
		"00112233445566778899aabbccddeeff:00:00",
		"00112233445566778899aabbccddeeff:00112233445566778899aabbccddeeff:xyz",
	}
	for _, token := range cases {
		_, err := v.Decrypt(token)
		assert.ErrorIs(t, err, errs.ErrFormat, "token %q", token)
	}
}

func TestErrorsDoNotLeakPlaintext(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Decrypt("not:a:token-with-SECRET")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestFingerprint(t *testing.T) {
	v := newTestVault(t)
	other, err := New("other-secret", "test-salt", 1000)
	require.NoError(t, err)

	fp := v.Fingerprint("my-api-secret")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, v.Fingerprint("my-api-secret"))
	assert.NotEqual(t, fp, v.Fingerprint("my-api-secret2"))
	assert.NotEqual(t, fp, other.Fingerprint("my-api-secret"))
	assert.NotContains(t, fp, "my-api-secret")
}

func TestCredentialsRoundTrip(t *testing.T) {
	v := newTestVault(t)
	in := models.Credentials{APIKey: "key", APISecret: "secret", Passphrase: "pass"}

	enc, err := v.EncryptCredentials(in)
	require.NoError(t, err)
	assert.NotContains(t, enc.APISecret, "secret")

	out, err := v.DecryptCredentials(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	noPass, err := v.EncryptCredentials(models.Credentials{APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.Empty(t, noPass.Passphrase)
}
