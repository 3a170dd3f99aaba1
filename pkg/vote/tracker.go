package vote

import (
	"fmt"
	"sort"

	"github.com/oneconcern/voteview/pkg/solana"
	"go.uber.org/zap"
)

// DefaultSlotWindow bounds the number of slot parents kept in memory
const DefaultSlotWindow = 1000

// EventKind tells what happened to an observed vote
type EventKind int

const (
	// Processed votes were applied to the voter's tower
	Processed EventKind = iota
	// Stale votes do not vote on any slot newer than the tower
	Stale
	// Skipped votes reference slots outside the known slot window
	Skipped
	// Violation votes break the voter's lockouts. They are applied anyway.
	Violation
)

func (k EventKind) String() string {
	switch k {
	case Processed:
		return "processed"
	case Stale:
		return "stale"
	case Skipped:
		return "skipped"
	case Violation:
		return "violation"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports the outcome of one vote
type Event struct {
	Kind    EventKind
	Slot    solana.Slot
	Voter   solana.Pubkey
	Vote    solana.Vote
	Depth   int
	Credits uint64
	// Reason explains Skipped events
	Reason string
	// Violation is set for Violation events
	Violation *LockoutViolation
}

// LockoutViolation describes a vote on a slot that the voter's tower still locks out
type LockoutViolation struct {
	Voter     solana.Pubkey
	Slot      solana.Slot
	Conflict  Lockout
	Tower     string
	Ancestors []solana.Slot
}

func (v *LockoutViolation) Error() string {
	return fmt.Sprintf("%s locked out at %d by its vote on %d (lockout until %d) with state %s, ancestors %v",
		v.Voter, v.Slot, v.Conflict.Slot, v.Conflict.LastLockedOutSlot(), v.Tower, v.Ancestors)
}

type observedVote struct {
	voter solana.Pubkey
	vote  solana.Vote
}

// Tracker replays the towers of every voter seen on the vote stream.
//
// Votes are buffered under their highest slot until the slot stream has
// caught up with it, then applied in slot order.
type Tracker struct {
	window      int
	l           *zap.Logger
	votesBySlot map[solana.Slot][]observedVote
	slotParents map[solana.Slot]solana.Slot
	states      map[solana.Pubkey]*State
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// SlotWindow sets how many slot parents are remembered. It must be at least 2.
func SlotWindow(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 1 {
			t.window = n
		}
	}
}

// TrackerLogger sets a logger
func TrackerLogger(l *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.l = l
		}
	}
}

// NewTracker builds an empty tracker
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		window:      DefaultSlotWindow,
		l:           zap.NewNop(),
		votesBySlot: make(map[solana.Slot][]observedVote),
		slotParents: make(map[solana.Slot]solana.Slot),
		states:      make(map[solana.Pubkey]*State),
	}
	for _, apply := range opts {
		apply(t)
	}
	return t
}

// AddVote buffers a vote. Empty votes are ignored.
func (t *Tracker) AddVote(voter solana.Pubkey, v solana.Vote) {
	if len(v.Slots) == 0 {
		return
	}
	last := v.LastSlot()
	t.votesBySlot[last] = append(t.votesBySlot[last], observedVote{voter: voter, vote: v})
}

// AddSlot records the parent of a slot
func (t *Tracker) AddSlot(slot, parent solana.Slot) {
	t.slotParents[slot] = parent
}

// State returns the replayed tower of a voter
func (t *Tracker) State(voter solana.Pubkey) (*State, bool) {
	s, ok := t.states[voter]
	return s, ok
}

// Validators is the number of vote accounts with a replayed tower
func (t *Tracker) Validators() int {
	return len(t.states)
}

// Pending counts buffered votes
func (t *Tracker) Pending() int {
	n := 0
	for _, votes := range t.votesBySlot {
		n += len(votes)
	}
	return n
}

// KnownSlots counts the slots in the window
func (t *Tracker) KnownSlots() int {
	return len(t.slotParents)
}

// Process applies every buffered vote whose slot is known
func (t *Tracker) Process() []Event {
	if len(t.slotParents) == 0 {
		return nil
	}

	lowest := t.lowestSlot()
	for len(t.slotParents) >= t.window {
		delete(t.slotParents, lowest)
		lowest = t.lowestSlot()
	}
	highest := lowest
	for slot := range t.slotParents {
		if slot > highest {
			highest = slot
		}
	}

	var ready []solana.Slot
	for slot := range t.votesBySlot {
		switch {
		case slot < lowest:
			delete(t.votesBySlot, slot)
		case slot <= highest:
			ready = append(ready, slot)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	if len(ready) > 0 {
		t.l.Debug("vote slots to process", zap.Int("count", len(ready)), zap.Uint64("from", uint64(ready[0])))
	}

	var events []Event
	for _, slot := range ready {
		votes := t.votesBySlot[slot]
		delete(t.votesBySlot, slot)
		for _, ov := range votes {
			events = append(events, t.apply(slot, ov))
		}
	}
	return events
}

func (t *Tracker) apply(slot solana.Slot, ov observedVote) Event {
	state, ok := t.states[ov.voter]
	if !ok {
		state = &State{}
		t.states[ov.voter] = state
	}
	ev := Event{Slot: slot, Voter: ov.voter, Vote: ov.vote}

	if lowestTower, ok := state.LowestVotedSlot(); ok && !t.known(lowestTower) {
		ev.Kind = Skipped
		ev.Reason = fmt.Sprintf("lowest tower slot %d is outside the slot window", lowestTower)
		return t.fill(ev, state)
	}
	if first := ov.vote.Slots[0]; !t.known(first) {
		ev.Kind = Skipped
		ev.Reason = fmt.Sprintf("lowest vote slot %d is outside the slot window", first)
		return t.fill(ev, state)
	}

	highestVote := ov.vote.LastSlot()
	if !state.IsRecent(highestVote) {
		ev.Kind = Stale
		return t.fill(ev, state)
	}

	ev.Kind = Processed
	ancestors := t.ancestors(highestVote)
	if locked, conflict := state.IsLockedOut(highestVote, ancestors); locked {
		ev.Kind = Violation
		ev.Violation = &LockoutViolation{
			Voter:     ov.voter,
			Slot:      highestVote,
			Conflict:  *conflict,
			Tower:     state.String(),
			Ancestors: sortedSlots(ancestors),
		}
	}
	state.ProcessVote(ov.vote)
	return t.fill(ev, state)
}

func (t *Tracker) fill(ev Event, state *State) Event {
	ev.Depth = state.Depth()
	ev.Credits = state.Credits()
	return ev
}

func (t *Tracker) known(slot solana.Slot) bool {
	_, ok := t.slotParents[slot]
	return ok
}

func (t *Tracker) lowestSlot() solana.Slot {
	first := true
	var lowest solana.Slot
	for slot := range t.slotParents {
		if first || slot < lowest {
			lowest = slot
			first = false
		}
	}
	return lowest
}

// ancestors walks the parent links from slot
func (t *Tracker) ancestors(slot solana.Slot) map[solana.Slot]struct{} {
	out := make(map[solana.Slot]struct{})
	for {
		parent, ok := t.slotParents[slot]
		if !ok || parent >= slot {
			return out
		}
		out[parent] = struct{}{}
		slot = parent
	}
}

func sortedSlots(set map[solana.Slot]struct{}) []solana.Slot {
	out := make([]solana.Slot, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
