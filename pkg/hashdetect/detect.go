package hashdetect

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

func Hasher(algo string) (hash.Hash, error) {
	switch algo {
	case "b2":
		return blake2b.New256(nil)
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unknown algo: %s", algo)
	}
}

// Sum is an expected digest in "<algo>:<value>" form. b2 values are base58,
// sha256 values are hex.
type Sum struct {
	Algo  string
	Value []byte
}

func ParseSum(s string) (*Sum, error) {
	idx := strings.IndexByte(s, ':')
	if idx == -1 {
		return nil, fmt.Errorf("sum missing algorithm prefix: %s", s)
	}

	algo, val := s[:idx], s[idx+1:]

	var (
		data []byte
		err  error
	)

	switch algo {
	case "b2":
		data, err = base58.Decode(val)
	case "sha256":
		data, err = hex.DecodeString(val)
	default:
		return nil, fmt.Errorf("unknown algo: %s", algo)
	}

	if err != nil {
		return nil, fmt.Errorf("invalid %s sum: %w", algo, err)
	}

	return &Sum{Algo: algo, Value: data}, nil
}

func (s *Sum) String() string {
	switch s.Algo {
	case "sha256":
		return s.Algo + ":" + hex.EncodeToString(s.Value)
	default:
		return s.Algo + ":" + base58.Encode(s.Value)
	}
}

func FileSum(algo, path string) (*Sum, error) {
	h, err := Hasher(algo)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	_, err = io.Copy(h, f)
	if err != nil {
		return nil, err
	}

	return &Sum{Algo: algo, Value: h.Sum(nil)}, nil
}

func (s *Sum) Matches(o *Sum) bool {
	return s.Algo == o.Algo && bytes.Equal(s.Value, o.Value)
}

func HashString(str string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(str))

	return base58.Encode(h.Sum(nil))
}
