package viewer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const cellWidth = 9

var (
	missLabel = color.New(color.FgRed, color.Bold)
	skipLabel = color.New(color.FgYellow)
	failed    = color.New(color.FgRed)
)

// String renders a cell: the mark, a success flag, and the first characters of the signature
func (e *Entry) String() string {
	if e == nil {
		return strings.Repeat(" ", cellWidth)
	}
	var sign string
	switch e.Kind {
	case Voted:
		sign = "+"
	case Landed:
		sign = "="
	case VoteGap:
		return "   xx    "
	case Waiting:
		return "   ^^    "
	default:
		return strings.Repeat(" ", cellWidth)
	}
	ok := " "
	if !e.Meta.Success {
		ok = "!"
	}
	sig := e.Meta.Signature.String()
	if len(sig) > 4 {
		sig = sig[:4]
	}
	return fmt.Sprintf("%s%s%s..%s", sign, ok, sig, ok)
}

func (r Row) label() string {
	switch {
	case !r.Confirmed:
		return skipLabel.Sprint(" SKIP ")
	case r.Miss:
		return missLabel.Sprint(" MISS ")
	default:
		return "      "
	}
}

// Render writes the table followed by its summary
func Render(w io.Writer, t *Table) error {
	if t.Empty() {
		_, err := fmt.Fprintf(w, "\nNo vote transactions to display (%d transactions inspected)\n", t.Transactions)
		return err
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, r := range t.Rows {
		label := r.label()
		fmt.Fprintf(&b, "%s%8d%s ", label, r.Slot, label)
		for _, e := range r.Entries {
			cell := e.String()
			if e != nil && !e.Meta.Success && e.Kind != Space {
				cell = failed.Sprint(cell)
			}
			b.WriteString(cell)
			b.WriteString(" | ")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nSlot Range: %d..%d\n%d of %d confirmed\n",
		t.Start(), t.End(), t.ConfirmedCount, uint64(t.End()-t.Start())+1)
	if t.MissCount > 0 {
		fmt.Fprintf(&b, "Missed slots: %d\n", t.MissCount)
	}
	if t.FailedVotes > 0 {
		fmt.Fprintf(&b, "Failed vote transactions: %d\n", t.FailedVotes)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
