package viewer

import (
	"sort"

	"github.com/oneconcern/voteview/pkg/solana"
)

// EntryKind is what a vote transaction means for a slot of the table
type EntryKind int

const (
	// Space is an empty cell
	Space EntryKind = iota
	// Voted marks a slot voted on by the transaction
	Voted
	// VoteGap marks a slot skipped over by the votes of the transaction
	VoteGap
	// Waiting marks slots between the last vote and the landing slot
	Waiting
	// Landed marks the slot the transaction landed in
	Landed
)

// VoteMeta summarizes one vote transaction
type VoteMeta struct {
	Signature solana.Signature
	Success   bool
	// VoteSlots are sorted in ascending order
	VoteSlots  []solana.Slot
	LandedSlot solana.Slot
}

func (m VoteMeta) firstVoteSlot() solana.Slot { return m.VoteSlots[0] }
func (m VoteMeta) lastVoteSlot() solana.Slot  { return m.VoteSlots[len(m.VoteSlots)-1] }

func (m VoteMeta) votesOn(slot solana.Slot) bool {
	i := sort.Search(len(m.VoteSlots), func(i int) bool { return m.VoteSlots[i] >= slot })
	return i < len(m.VoteSlots) && m.VoteSlots[i] == slot
}

// span is the range of rows a vote transaction occupies: from its first vote
// to the slot after it landed
func (m VoteMeta) span() (solana.Slot, solana.Slot) {
	return m.firstVoteSlot(), m.LandedSlot + 1
}

func (m VoteMeta) kindAt(slot solana.Slot) EntryKind {
	switch {
	case slot == m.LandedSlot:
		return Landed
	case m.votesOn(slot):
		return Voted
	case slot < m.lastVoteSlot():
		return VoteGap
	case slot < m.LandedSlot:
		return Waiting
	default:
		return Space
	}
}

// Entry is one cell of the table
type Entry struct {
	Kind EntryKind
	Meta VoteMeta
}

// Row is one slot of the table. Entries holds one cell per depth; nil cells are blank.
type Row struct {
	Slot      solana.Slot
	Entries   []*Entry
	Confirmed bool
	Miss      bool
}

// Table lays out vote transactions by slot
type Table struct {
	Rows []Row
	// MaxDepth is the number of vote transactions overlapping on the busiest slot
	MaxDepth        int
	Transactions    int
	Votes           int
	FailedVotes     int
	MaxLastVoteSlot solana.Slot
	ConfirmedCount  int
	MissCount       int
}

// Start is the first slot in the table
func (t *Table) Start() solana.Slot {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Rows[0].Slot
}

// End is the last slot in the table
func (t *Table) End() solana.Slot {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Rows[len(t.Rows)-1].Slot
}

// Empty tells if there is nothing to display
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Layout places vote transactions in a slot by depth grid.
//
// Transactions are placed from the most recently landed, each at the
// shallowest depth that is free over its whole span. The row after the last
// landing slot is dropped, and missing slots in between get empty rows.
func Layout(metas []VoteMeta) *Table {
	t := &Table{}

	var valid []VoteMeta
	counts := make(map[solana.Slot]int)
	for _, m := range metas {
		if len(m.VoteSlots) == 0 {
			continue
		}
		valid = append(valid, m)
		first, last := m.span()
		for s := first; s <= last; s++ {
			counts[s]++
			if counts[s] > t.MaxDepth {
				t.MaxDepth = counts[s]
			}
		}
	}
	t.Votes = len(valid)
	if t.MaxDepth == 0 {
		for _, m := range valid {
			if !m.Success {
				t.FailedVotes++
			}
		}
		return t
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].LandedSlot > valid[j].LandedSlot })

	grid := make(map[solana.Slot][]*Entry)
	row := func(s solana.Slot) []*Entry {
		r, ok := grid[s]
		if !ok {
			r = make([]*Entry, t.MaxDepth)
			grid[s] = r
		}
		return r
	}

	for _, m := range valid {
		if m.lastVoteSlot() > t.MaxLastVoteSlot {
			t.MaxLastVoteSlot = m.lastVoteSlot()
		}
		if !m.Success {
			t.FailedVotes++
		}
		first, last := m.span()
		for depth := 0; depth < t.MaxDepth; depth++ {
			free := true
			for s := first; s <= last; s++ {
				if row(s)[depth] != nil {
					free = false
					break
				}
			}
			if !free {
				continue
			}
			for s := first; s <= last; s++ {
				row(s)[depth] = &Entry{Kind: m.kindAt(s), Meta: m}
			}
			break
		}
	}

	if len(grid) == 0 {
		return t
	}
	slots := make([]solana.Slot, 0, len(grid))
	for s := range grid {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	slots = slots[:len(slots)-1]
	if len(slots) == 0 {
		return t
	}

	start, end := slots[0], slots[len(slots)-1]
	t.Rows = make([]Row, 0, int(end-start)+1)
	for s := start; s <= end; s++ {
		t.Rows = append(t.Rows, Row{Slot: s, Entries: grid[s]})
	}
	return t
}

// Annotate flags skipped and missed slots given the confirmed blocks of the range
func (t *Table) Annotate(confirmed []solana.Slot) {
	set := make(map[solana.Slot]struct{}, len(confirmed))
	for _, s := range confirmed {
		set[s] = struct{}{}
	}
	t.ConfirmedCount = len(confirmed)
	t.MissCount = 0
	for i := range t.Rows {
		r := &t.Rows[i]
		_, r.Confirmed = set[r.Slot]
		r.Miss = r.Slot < t.MaxLastVoteSlot && !hasSuccessfulVote(r.Entries)
		if r.Confirmed && r.Miss {
			t.MissCount++
		}
	}
}

func hasSuccessfulVote(entries []*Entry) bool {
	for _, e := range entries {
		if e != nil && e.Kind == Voted && e.Meta.Success {
			return true
		}
	}
	return false
}
