// Package hashfold implements an order-independent content hash built by
// XOR-folding fixed-length per-file digests.
//
// Because XOR is commutative and associative, files may be digested in any
// order or in parallel and folded into the same running total.
package hashfold

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Size is the byte length of a single-file digest.
const Size = md5.Size

var (
	// ErrLengthMismatch is returned when folding digests of different lengths.
	ErrLengthMismatch = errors.New("hash length mismatch")

	// ErrNilOperand is returned when folding an unset hash into a set one.
	ErrNilOperand = errors.New("cannot fold an unset hash into a set hash")
)

// Hash is a folded digest. The zero value is the unset hash, which acts as
// the identity for Fold.
type Hash struct {
	b []byte
}

// FromBytes returns a Hash holding a copy of b. An empty b yields the unset hash.
func FromBytes(b []byte) Hash {
	if len(b) == 0 {
		return Hash{}
	}
	return Hash{b: append([]byte(nil), b...)}
}

// Parse decodes a hex string produced by String. An empty string yields the
// unset hash.
func Parse(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hash{}, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return Hash{b: b}, nil
}

// IsValid reports whether the hash has been set.
func (h Hash) IsValid() bool {
	return len(h.b) > 0
}

// IsZero reports whether the hash is unset. Encoders use it for omitempty.
func (h Hash) IsZero() bool {
	return !h.IsValid()
}

// Bytes returns a copy of the digest bytes.
func (h Hash) Bytes() []byte {
	return append([]byte(nil), h.b...)
}

// String returns the lowercase hex encoding, or "" for the unset hash.
func (h Hash) String() string {
	return hex.EncodeToString(h.b)
}

// Equal reports whether two hashes hold identical bytes. Two unset hashes
// are equal.
func (h Hash) Equal(other Hash) bool {
	if len(h.b) != len(other.b) {
		return false
	}
	for i := range h.b {
		if h.b[i] != other.b[i] {
			return false
		}
	}
	return true
}

// Fold XORs other into h. Folding into an unset hash adopts a copy of other.
func (h *Hash) Fold(other Hash) error {
	if !h.IsValid() {
		h.b = other.Bytes()
		return nil
	}
	if !other.IsValid() {
		return ErrNilOperand
	}
	if len(h.b) != len(other.b) {
		return fmt.Errorf("%w: %d vs %d bytes", ErrLengthMismatch, len(h.b), len(other.b))
	}
	for i := range h.b {
		h.b[i] ^= other.b[i]
	}
	return nil
}

// FoldBytes folds a raw digest into h.
func (h *Hash) FoldBytes(digest []byte) error {
	return h.Fold(Hash{b: digest})
}

// MarshalText encodes the hash as hex so it round-trips through TOML, YAML
// and JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Reader returns the digest of everything read from r.
func Reader(r io.Reader) (Hash, error) {
	d := md5.New()
	if _, err := io.Copy(d, r); err != nil {
		return Hash{}, err
	}
	return Hash{b: d.Sum(nil)}, nil
}

// File returns the digest of the file at path.
func File(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h, err := Reader(f)
	if err != nil {
		return Hash{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return h, nil
}
