package verification

import (
	"crypto/ed25519"
	"crypto/rand"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	msg := []byte("archive contents")

	t.Run("accepts a matching signature", func(t *testing.T) {
		v := &Verifier{Signer: SignerID(pub), Signature: Sign(priv, msg)}

		require.NoError(t, v.Check())
		assert.NoError(t, v.Verify(msg))
	})

	t.Run("rejects altered content", func(t *testing.T) {
		v := &Verifier{Signer: SignerID(pub), Signature: Sign(priv, msg)}

		assert.Equal(t, ErrWrongSignature, v.Verify([]byte("archive contents!")))
	})

	t.Run("rejects another signer", func(t *testing.T) {
		other, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		v := &Verifier{Signer: SignerID(other), Signature: Sign(priv, msg)}

		assert.Equal(t, ErrWrongSignature, v.Verify(msg))
	})

	t.Run("verifies files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.zip")
		require.NoError(t, ioutil.WriteFile(path, msg, 0644))

		v := &Verifier{Signer: SignerID(pub), Signature: Sign(priv, msg)}

		assert.NoError(t, v.VerifyFile(path))
	})

	t.Run("is disabled without a signer", func(t *testing.T) {
		var v *Verifier
		assert.False(t, v.Enabled())
		assert.NoError(t, v.Check())

		assert.False(t, (&Verifier{}).Enabled())
	})

	t.Run("rejects unknown signer schemes", func(t *testing.T) {
		v := &Verifier{Signer: "2:abc", Signature: "abc"}

		err := v.Check()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown signer id scheme: 2")
	})

	t.Run("requires a signature when a signer is set", func(t *testing.T) {
		v := &Verifier{Signer: SignerID(pub)}

		assert.Error(t, v.Check())
	})

	t.Run("rejects truncated keys", func(t *testing.T) {
		_, err := ParseSigner(SignerID(pub[:10]))
		assert.Error(t, err)
	})
}
