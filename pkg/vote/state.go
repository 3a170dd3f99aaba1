// Package vote replays validator towers from observed votes.
//
// State follows the vote program's lockout rules: every new vote pops the
// lockouts that expired before its slot, pushes a lockout with a confirmation
// count of one, then doubles the lockouts that are now deep enough in the
// tower. A full tower roots its oldest slot and earns a credit.
package vote

import (
	"fmt"

	"github.com/oneconcern/voteview/pkg/solana"
)

const (
	// MaxLockoutHistory is the depth of a tower
	MaxLockoutHistory = 31

	// InitialLockout is the lockout base, raised to the confirmation count
	InitialLockout = 2
)

// Lockout is one tower entry
type Lockout struct {
	Slot              solana.Slot
	ConfirmationCount uint32
}

// Lockout is the number of slots this vote is locked out for
func (l Lockout) Lockout() uint64 {
	if l.ConfirmationCount >= 64 {
		return ^uint64(0)
	}
	return uint64(1) << l.ConfirmationCount
}

// LastLockedOutSlot is the last slot the vote still locks out
func (l Lockout) LastLockedOutSlot() solana.Slot {
	lockout := l.Lockout()
	if uint64(l.Slot) > ^uint64(0)-lockout {
		return solana.Slot(^uint64(0))
	}
	return l.Slot + solana.Slot(lockout)
}

// IsLockedOutAtSlot tells if voting on slot would still conflict with this lockout
func (l Lockout) IsLockedOutAtSlot(slot solana.Slot) bool {
	return l.LastLockedOutSlot() >= slot
}

// State is a replayed tower
type State struct {
	Votes    []Lockout
	RootSlot *solana.Slot
	credits  uint64
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	c := &State{
		Votes:   append([]Lockout(nil), s.Votes...),
		credits: s.credits,
	}
	if s.RootSlot != nil {
		root := *s.RootSlot
		c.RootSlot = &root
	}
	return c
}

// LastVotedSlot is the slot of the newest lockout
func (s *State) LastVotedSlot() (solana.Slot, bool) {
	if len(s.Votes) == 0 {
		return 0, false
	}
	return s.Votes[len(s.Votes)-1].Slot, true
}

// LowestVotedSlot is the slot of the oldest lockout still in the tower
func (s *State) LowestVotedSlot() (solana.Slot, bool) {
	if len(s.Votes) == 0 {
		return 0, false
	}
	lowest := s.Votes[0].Slot
	for _, v := range s.Votes[1:] {
		if v.Slot < lowest {
			lowest = v.Slot
		}
	}
	return lowest, true
}

// Credits earned by rooting slots
func (s *State) Credits() uint64 {
	return s.credits
}

// Depth is the number of lockouts in the tower
func (s *State) Depth() int {
	return len(s.Votes)
}

// IsRecent tells if slot is newer than the last vote
func (s *State) IsRecent(slot solana.Slot) bool {
	last, ok := s.LastVotedSlot()
	return !ok || slot > last
}

// ProcessSlotVote applies a vote on a single slot. Votes at or below the last voted slot are ignored.
func (s *State) ProcessSlotVote(slot solana.Slot) {
	if !s.IsRecent(slot) {
		return
	}
	s.popExpiredVotes(slot)

	if len(s.Votes) == MaxLockoutHistory {
		root := s.Votes[0].Slot
		s.Votes = s.Votes[1:]
		s.RootSlot = &root
		s.credits++
	}
	s.Votes = append(s.Votes, Lockout{Slot: slot, ConfirmationCount: 1})
	s.doubleLockouts()
}

// ProcessVote applies every slot of a vote in order
func (s *State) ProcessVote(v solana.Vote) {
	for _, slot := range v.Slots {
		s.ProcessSlotVote(slot)
	}
}

// IsLockedOut tells if voting on slot would violate the tower: after
// simulating the vote, any remaining lockout on a slot which is neither the
// voted slot nor one of its ancestors is on another fork.
func (s *State) IsLockedOut(slot solana.Slot, ancestors map[solana.Slot]struct{}) (bool, *Lockout) {
	sim := s.Clone()
	sim.ProcessSlotVote(slot)
	for _, v := range sim.Votes {
		if v.Slot == slot {
			continue
		}
		if _, ok := ancestors[v.Slot]; !ok {
			conflict := v
			return true, &conflict
		}
	}
	return false, nil
}

func (s *State) popExpiredVotes(next solana.Slot) {
	for len(s.Votes) > 0 {
		last := s.Votes[len(s.Votes)-1]
		if last.IsLockedOutAtSlot(next) {
			return
		}
		s.Votes = s.Votes[:len(s.Votes)-1]
	}
}

func (s *State) doubleLockouts() {
	depth := len(s.Votes)
	for i := range s.Votes {
		// lockouts double once enough votes are stacked on top of them
		if depth > i+int(s.Votes[i].ConfirmationCount) {
			s.Votes[i].ConfirmationCount++
		}
	}
}

func (s *State) String() string {
	root := "none"
	if s.RootSlot != nil {
		root = fmt.Sprint(*s.RootSlot)
	}
	return fmt.Sprintf("tower{depth: %d, root: %s, credits: %d, votes: %v}", len(s.Votes), root, s.credits, s.Votes)
}
