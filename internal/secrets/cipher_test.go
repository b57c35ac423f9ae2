package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/secrets"
)

func TestRoundTrip(t *testing.T) {
	c, err := secrets.NewCipher("passphrase")
	require.NoError(t, err)

	sealed, err := c.Encrypt("sk_test_123")
	require.NoError(t, err)
	require.NotContains(t, sealed, "sk_test_123")
	require.Equal(t, "sk_test_123", c.Decrypt(sealed))
}

func TestDecryptMalformedReturnsEmpty(t *testing.T) {
	c, err := secrets.NewCipher("passphrase")
	require.NoError(t, err)
	sealed, err := c.Encrypt("whsec_abc")
	require.NoError(t, err)

	require.Empty(t, c.Decrypt(""))
	require.Empty(t, c.Decrypt("sk_test_plain"))
	require.Empty(t, c.Decrypt("enc:v1:!!!"))
	require.Empty(t, c.Decrypt("enc:v1:AAAA"))
	require.Empty(t, c.Decrypt(flip(sealed, len("enc:v1:")+10)))

	other, err := secrets.NewCipher("another")
	require.NoError(t, err)
	require.Empty(t, other.Decrypt(sealed))
}

func flip(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := secrets.NewCipher("  ")
	require.Error(t, err)
}
