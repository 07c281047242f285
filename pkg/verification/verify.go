package verification

import (
	"crypto/ed25519"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrWrongSignature = errors.New("wrong signature")

// Verifier checks detached ed25519 signatures over downloaded archives.
// Signers are written as "1:<base58 public key>" and signatures as base58.
type Verifier struct {
	Signer    string
	Signature string
}

// Enabled reports whether a signer was configured at all.
func (v *Verifier) Enabled() bool {
	return v != nil && v.Signer != ""
}

func ParseSigner(name string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(name, "1:") {
		scheme := name
		if idx := strings.IndexByte(name, ':'); idx != -1 {
			scheme = name[:idx]
		}

		return nil, fmt.Errorf("unknown signer id scheme: %s", scheme)
	}

	data, err := base58.Decode(name[2:])
	if err != nil {
		return nil, errors.Wrapf(err, "decoding signer")
	}

	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signer key is %d bytes, expected %d", len(data), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(data), nil
}

// Check validates the configured signer and signature without touching any
// file.
func (v *Verifier) Check() error {
	if !v.Enabled() {
		return nil
	}

	if _, err := ParseSigner(v.Signer); err != nil {
		return err
	}

	if v.Signature == "" {
		return fmt.Errorf("signer configured without a signature")
	}

	if _, err := base58.Decode(v.Signature); err != nil {
		return errors.Wrapf(err, "decoding signature")
	}

	return nil
}

func (v *Verifier) Verify(msg []byte) error {
	k, err := ParseSigner(v.Signer)
	if err != nil {
		return err
	}

	sig, err := base58.Decode(v.Signature)
	if err != nil {
		return errors.Wrapf(err, "decoding signature")
	}

	if !ed25519.Verify(k, msg, sig) {
		return ErrWrongSignature
	}

	return nil
}

func (v *Verifier) VerifyFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	return v.Verify(data)
}

// Sign produces the signature string Verify expects. It is used to prepare
// signatures for published archives.
func Sign(key ed25519.PrivateKey, msg []byte) string {
	return base58.Encode(ed25519.Sign(key, msg))
}

// SignerID renders a public key in the form ParseSigner accepts.
func SignerID(pub ed25519.PublicKey) string {
	return "1:" + base58.Encode(pub)
}
