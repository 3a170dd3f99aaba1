package solana

import (
	"encoding/binary"

	"github.com/oneconcern/voteview/pkg/errors"
)

// LegacyVersion marks a message without a version prefix
const LegacyVersion = -1

var (
	// ErrShortBuffer is returned when the input ends in the middle of a field
	ErrShortBuffer = errors.New("unexpected end of data")

	// ErrMalformed is returned when a field does not make sense
	ErrMalformed = errors.New("malformed transaction")
)

// MessageHeader counts signers and read-only accounts
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references its program and accounts by index into the message keys
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// AddressTableLookup loads extra accounts from an on-chain lookup table (v0 messages)
type AddressTableLookup struct {
	AccountKey      Pubkey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// Message is the signed part of a transaction
type Message struct {
	Version             int
	Header              MessageHeader
	AccountKeys         []Pubkey
	RecentBlockhash     Hash
	Instructions        []CompiledInstruction
	AddressTableLookups []AddressTableLookup
}

// Transaction is a decoded wire transaction
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// ProgramID resolves the program an instruction invokes.
//
// Only static keys are resolved: programs cannot be loaded from lookup tables.
func (m *Message) ProgramID(ix CompiledInstruction) (Pubkey, error) {
	if int(ix.ProgramIDIndex) >= len(m.AccountKeys) {
		return Pubkey{}, ErrMalformed.Wrapf(nil, "program index %d out of %d keys", ix.ProgramIDIndex, len(m.AccountKeys))
	}
	return m.AccountKeys[ix.ProgramIDIndex], nil
}

// DecodeTransaction parses a serialized transaction
func DecodeTransaction(data []byte) (*Transaction, error) {
	r := &reader{buf: data}

	n, err := r.count(SignatureSize)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Signatures: make([]Signature, n)}
	for i := range tx.Signatures {
		if err = r.fixed(tx.Signatures[i][:]); err != nil {
			return nil, err
		}
	}
	if err = decodeMessage(r, &tx.Message); err != nil {
		return nil, err
	}
	if int(tx.Message.Header.NumRequiredSignatures) != len(tx.Signatures) {
		return nil, ErrMalformed.Wrapf(nil, "%d signatures for %d required signers", len(tx.Signatures), tx.Message.Header.NumRequiredSignatures)
	}
	return tx, nil
}

func decodeMessage(r *reader, m *Message) error {
	prefix, err := r.byte()
	if err != nil {
		return err
	}
	m.Version = LegacyVersion
	if prefix&0x80 != 0 {
		m.Version = int(prefix & 0x7f)
		if m.Version != 0 {
			return ErrMalformed.Wrapf(nil, "unsupported message version %d", m.Version)
		}
		if prefix, err = r.byte(); err != nil {
			return err
		}
	}
	m.Header.NumRequiredSignatures = prefix
	if m.Header.NumReadonlySignedAccounts, err = r.byte(); err != nil {
		return err
	}
	if m.Header.NumReadonlyUnsignedAccounts, err = r.byte(); err != nil {
		return err
	}

	n, err := r.count(PubkeySize)
	if err != nil {
		return err
	}
	m.AccountKeys = make([]Pubkey, n)
	for i := range m.AccountKeys {
		if err = r.fixed(m.AccountKeys[i][:]); err != nil {
			return err
		}
	}
	if err = r.fixed(m.RecentBlockhash[:]); err != nil {
		return err
	}

	// program index, then two compact lengths
	if n, err = r.count(3); err != nil {
		return err
	}
	m.Instructions = make([]CompiledInstruction, n)
	for i := range m.Instructions {
		ix := &m.Instructions[i]
		if ix.ProgramIDIndex, err = r.byte(); err != nil {
			return err
		}
		if ix.Accounts, err = r.compactBytes(); err != nil {
			return err
		}
		if ix.Data, err = r.compactBytes(); err != nil {
			return err
		}
	}

	if m.Version == LegacyVersion {
		return nil
	}
	if n, err = r.count(PubkeySize + 2); err != nil {
		return err
	}
	m.AddressTableLookups = make([]AddressTableLookup, n)
	for i := range m.AddressTableLookups {
		l := &m.AddressTableLookups[i]
		if err = r.fixed(l.AccountKey[:]); err != nil {
			return err
		}
		if l.WritableIndexes, err = r.compactBytes(); err != nil {
			return err
		}
		if l.ReadonlyIndexes, err = r.compactBytes(); err != nil {
			return err
		}
	}
	return nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer.Wrapf(nil, "at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrShortBuffer.Wrapf(nil, "need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) fixed(dst []byte) error {
	b, err := r.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// compactLen reads a compact-u16: 7 bits per byte, little endian, at most 3 bytes
func (r *reader) compactLen() (int, error) {
	var v int
	for i := 0; i < 3; i++ {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if v > 0xffff {
				return 0, ErrMalformed.Wrapf(nil, "compact length %d overflows u16", v)
			}
			return v, nil
		}
	}
	return 0, ErrMalformed.Wrapf(nil, "compact length longer than 3 bytes")
}

// count reads the compact length of an array whose entries take at least size bytes each
func (r *reader) count(size int) (int, error) {
	n, err := r.compactLen()
	if err != nil {
		return 0, err
	}
	if n*size > r.remaining() {
		return 0, ErrShortBuffer.Wrapf(nil, "%d entries of at least %d bytes at offset %d, have %d", n, size, r.pos, r.remaining())
	}
	return n, nil
}

func (r *reader) compactBytes() ([]byte, error) {
	n, err := r.compactLen()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
