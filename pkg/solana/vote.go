package solana

import (
	"github.com/oneconcern/voteview/pkg/errors"
)

// PacketDataSize caps the size of instruction data accepted by the decoder
const PacketDataSize = 1280 - 40 - 8

// VoteProgramID is the address of the native vote program
var VoteProgramID = MustParsePubkey("Vote111111111111111111111111111111111111111")

// VoteInstructionKind is the bincode variant tag of a vote program instruction
type VoteInstructionKind uint32

// Vote program instruction tags
const (
	InitializeAccount VoteInstructionKind = iota
	Authorize
	VoteIx
	Withdraw
	UpdateValidatorIdentity
	UpdateCommission
	VoteSwitch
	AuthorizeChecked
	UpdateVoteState
	UpdateVoteStateSwitch
)

var (
	// ErrNotSimpleVote is returned when a transaction is not a plain vote
	ErrNotSimpleVote = errors.New("not a simple vote transaction")

	// ErrUnsupportedInstruction is returned for vote program instructions that carry no Vote
	ErrUnsupportedInstruction = errors.New("unsupported vote instruction")
)

// Vote is a validator vote for a list of slots on the fork ending with Hash
type Vote struct {
	Slots     []Slot
	Hash      Hash
	Timestamp *int64
}

// LastSlot is the highest slot voted on, or 0 for an empty vote
func (v Vote) LastSlot() Slot {
	if len(v.Slots) == 0 {
		return 0
	}
	return v.Slots[len(v.Slots)-1]
}

// DecodeVoteInstruction extracts the Vote from Vote and VoteSwitch instruction data
func DecodeVoteInstruction(data []byte) (Vote, error) {
	if len(data) > PacketDataSize {
		return Vote{}, ErrMalformed.Wrapf(nil, "instruction data of %d bytes exceeds %d", len(data), PacketDataSize)
	}
	r := &reader{buf: data}
	tag, err := r.u32()
	if err != nil {
		return Vote{}, err
	}
	switch VoteInstructionKind(tag) {
	case VoteIx, VoteSwitch:
		// VoteSwitch carries a trailing proof hash, which is not needed here
		return decodeVote(r)
	default:
		return Vote{}, ErrUnsupportedInstruction.Wrapf(nil, "tag %d", tag)
	}
}

func decodeVote(r *reader) (Vote, error) {
	n, err := r.u64()
	if err != nil {
		return Vote{}, err
	}
	if n > uint64(r.remaining()/8) {
		return Vote{}, ErrShortBuffer.Wrapf(nil, "%d slots announced", n)
	}
	v := Vote{Slots: make([]Slot, n)}
	for i := range v.Slots {
		s, err := r.u64()
		if err != nil {
			return Vote{}, err
		}
		v.Slots[i] = Slot(s)
	}
	if err = r.fixed(v.Hash[:]); err != nil {
		return Vote{}, err
	}
	some, err := r.byte()
	if err != nil {
		return Vote{}, err
	}
	switch some {
	case 0:
	case 1:
		ts, err := r.u64()
		if err != nil {
			return Vote{}, err
		}
		t := int64(ts)
		v.Timestamp = &t
	default:
		return Vote{}, ErrMalformed.Wrapf(nil, "invalid option tag %d", some)
	}
	return v, nil
}

// SimpleVote returns the vote carried by a transaction made of a single vote program instruction
func SimpleVote(tx *Transaction) (Vote, error) {
	if len(tx.Message.Instructions) != 1 {
		return Vote{}, ErrNotSimpleVote.Wrapf(nil, "%d instructions", len(tx.Message.Instructions))
	}
	ix := tx.Message.Instructions[0]
	program, err := tx.Message.ProgramID(ix)
	if err != nil {
		return Vote{}, ErrNotSimpleVote.Wrap(err)
	}
	if program != VoteProgramID {
		return Vote{}, ErrNotSimpleVote.Wrapf(nil, "program %s", program)
	}
	v, err := DecodeVoteInstruction(ix.Data)
	if err != nil {
		return Vote{}, ErrNotSimpleVote.Wrap(err)
	}
	return v, nil
}
