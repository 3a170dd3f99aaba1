package solana

import (
	"github.com/mr-tron/base58"
	"github.com/oneconcern/voteview/pkg/errors"
)

const (
	// PubkeySize is the byte length of an ed25519 public key
	PubkeySize = 32

	// SignatureSize is the byte length of an ed25519 signature
	SignatureSize = 64

	// HashSize is the byte length of a sha256 hash
	HashSize = 32
)

var (
	// ErrInvalidBase58 is returned when a key, hash or signature does not decode
	ErrInvalidBase58 = errors.New("invalid base58")

	// ErrInvalidLength is returned when a decoded value has the wrong size
	ErrInvalidLength = errors.New("invalid length")
)

// Slot is a ledger slot number
type Slot uint64

// Pubkey is an account address
type Pubkey [PubkeySize]byte

// Signature is a transaction signature
type Signature [SignatureSize]byte

// Hash is a bank or block hash
type Hash [HashSize]byte

// ParsePubkey decodes a base58 address
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	return p, decodeInto(p[:], s)
}

// MustParsePubkey decodes a base58 address or panics
func MustParsePubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseSignature decodes a base58 signature
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	return sig, decodeInto(sig[:], s)
}

// ParseHash decodes a base58 hash
func ParseHash(s string) (Hash, error) {
	var h Hash
	return h, decodeInto(h[:], s)
}

func (p Pubkey) String() string    { return base58.Encode(p[:]) }
func (s Signature) String() string { return base58.Encode(s[:]) }
func (h Hash) String() string      { return base58.Encode(h[:]) }

// MarshalText renders the key in base58
func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a base58 key
func (p *Pubkey) UnmarshalText(b []byte) error {
	return decodeInto(p[:], string(b))
}

// MarshalText renders the signature in base58
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a base58 signature
func (s *Signature) UnmarshalText(b []byte) error {
	return decodeInto(s[:], string(b))
}

// MarshalText renders the hash in base58
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText parses a base58 hash
func (h *Hash) UnmarshalText(b []byte) error {
	return decodeInto(h[:], string(b))
}

// Compare orders signatures bytewise
func (s Signature) Compare(o Signature) int {
	for i := range s {
		switch {
		case s[i] < o[i]:
			return -1
		case s[i] > o[i]:
			return 1
		}
	}
	return 0
}

func decodeInto(dst []byte, s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return ErrInvalidBase58.Wrapf(err, "%q", s)
	}
	if len(raw) != len(dst) {
		return ErrInvalidLength.Wrapf(nil, "%q decodes to %d bytes, expected %d", s, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
