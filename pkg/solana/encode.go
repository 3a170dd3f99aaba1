package solana

import (
	"encoding/binary"
)

// MarshalBinary serializes the transaction in wire format
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	b := appendCompact(nil, len(tx.Signatures))
	for _, s := range tx.Signatures {
		b = append(b, s[:]...)
	}
	m := tx.Message
	if m.Version != LegacyVersion {
		b = append(b, 0x80|byte(m.Version))
	}
	b = append(b, m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts, m.Header.NumReadonlyUnsignedAccounts)
	b = appendCompact(b, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		b = append(b, k[:]...)
	}
	b = append(b, m.RecentBlockhash[:]...)
	b = appendCompact(b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b = append(b, ix.ProgramIDIndex)
		b = appendCompact(b, len(ix.Accounts))
		b = append(b, ix.Accounts...)
		b = appendCompact(b, len(ix.Data))
		b = append(b, ix.Data...)
	}
	if m.Version == LegacyVersion {
		return b, nil
	}
	b = appendCompact(b, len(m.AddressTableLookups))
	for _, l := range m.AddressTableLookups {
		b = append(b, l.AccountKey[:]...)
		b = appendCompact(b, len(l.WritableIndexes))
		b = append(b, l.WritableIndexes...)
		b = appendCompact(b, len(l.ReadonlyIndexes))
		b = append(b, l.ReadonlyIndexes...)
	}
	return b, nil
}

// EncodeVoteInstruction builds Vote or VoteSwitch instruction data.
// VoteSwitch gets a zero proof hash.
func EncodeVoteInstruction(kind VoteInstructionKind, v Vote) []byte {
	b := binary.LittleEndian.AppendUint32(nil, uint32(kind))
	b = binary.LittleEndian.AppendUint64(b, uint64(len(v.Slots)))
	for _, s := range v.Slots {
		b = binary.LittleEndian.AppendUint64(b, uint64(s))
	}
	b = append(b, v.Hash[:]...)
	if v.Timestamp == nil {
		b = append(b, 0)
	} else {
		b = append(b, 1)
		b = binary.LittleEndian.AppendUint64(b, uint64(*v.Timestamp))
	}
	if kind == VoteSwitch {
		var proof Hash
		b = append(b, proof[:]...)
	}
	return b
}

// NewVoteTransaction assembles an unsigned single-instruction vote
// transaction. The signature slot is filled with sig.
func NewVoteTransaction(sig Signature, authority, voteAccount Pubkey, kind VoteInstructionKind, v Vote) *Transaction {
	return &Transaction{
		Signatures: []Signature{sig},
		Message: Message{
			Version: LegacyVersion,
			Header: MessageHeader{
				NumRequiredSignatures:       1,
				NumReadonlyUnsignedAccounts: 1,
			},
			AccountKeys: []Pubkey{authority, voteAccount, VoteProgramID},
			Instructions: []CompiledInstruction{{
				ProgramIDIndex: 2,
				Accounts:       []uint8{1, 0},
				Data:           EncodeVoteInstruction(kind, v),
			}},
		},
	}
}

func appendCompact(b []byte, n int) []byte {
	for {
		c := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
