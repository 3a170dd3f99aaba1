// Package viewer lays out the recent vote transactions of a vote account.
//
// Each vote transaction spans the slots from its first vote to the slot after
// it landed. Transactions are stacked side by side so that overlapping ones
// can be compared, and every slot is checked against the confirmed blocks to
// spot skipped slots and slots the validator missed.
package viewer

import (
	"context"
	"sort"

	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/oneconcern/voteview/pkg/rpc"
	"github.com/oneconcern/voteview/pkg/solana"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the number of transactions inspected by default
const DefaultLimit = 10

// Ledger is the part of the cluster RPC API used by the viewer
type Ledger interface {
	GetSignaturesForAddress(ctx context.Context, address solana.Pubkey, limit int, before *solana.Signature) ([]rpc.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.ConfirmedTransaction, error)
	GetBlocks(ctx context.Context, start, end solana.Slot) ([]solana.Slot, error)
}

// Viewer builds vote tables out of a Ledger
type Viewer struct {
	ledger      Ledger
	limit       int
	before      *solana.Signature
	concurrency int
	progress    func(rpc.SignatureInfo)
	l           *zap.Logger
}

// Option configures a Viewer
type Option func(*Viewer)

// Limit sets the number of transactions inspected
func Limit(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.limit = n
		}
	}
}

// Before starts the inspection strictly before a signature
func Before(sig *solana.Signature) Option {
	return func(v *Viewer) {
		v.before = sig
	}
}

// Concurrency sets the number of transactions fetched in parallel
func Concurrency(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// Progress is called for each inspected signature, in listing order
func Progress(fn func(rpc.SignatureInfo)) Option {
	return func(v *Viewer) {
		v.progress = fn
	}
}

// Logger sets a logger
func Logger(l *zap.Logger) Option {
	return func(v *Viewer) {
		if l != nil {
			v.l = l
		}
	}
}

// New builds a Viewer
func New(ledger Ledger, opts ...Option) *Viewer {
	v := &Viewer{
		ledger:      ledger,
		limit:       DefaultLimit,
		concurrency: 4,
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(v)
	}
	return v
}

// Signatures lists the transactions that View would inspect
func (v *Viewer) Signatures(ctx context.Context, account solana.Pubkey) ([]rpc.SignatureInfo, error) {
	infos, err := v.ledger.GetSignaturesForAddress(ctx, account, v.limit, v.before)
	if err != nil {
		return nil, errors.New("list signatures of " + account.String()).Wrap(err)
	}
	return infos, nil
}

// View builds the vote table of a vote account
func (v *Viewer) View(ctx context.Context, account solana.Pubkey) (*Table, error) {
	infos, err := v.Signatures(ctx, account)
	if err != nil {
		return nil, err
	}
	return v.ViewSignatures(ctx, infos)
}

// ViewSignatures builds the vote table out of already listed signatures
func (v *Viewer) ViewSignatures(ctx context.Context, infos []rpc.SignatureInfo) (*Table, error) {
	metas, err := v.collect(ctx, infos)
	if err != nil {
		return nil, err
	}

	t := Layout(metas)
	t.Transactions = len(infos)
	if t.Empty() {
		return t, nil
	}

	confirmed, err := v.ledger.GetBlocks(ctx, t.Start(), t.End())
	if err != nil {
		return nil, errors.New("list confirmed blocks").Wrap(err)
	}
	t.Annotate(confirmed)
	return t, nil
}

// collect fetches transactions and keeps the simple votes, in listing order.
// The first failure cancels the fetches still in flight.
func (v *Viewer) collect(parent context.Context, infos []rpc.SignatureInfo) ([]VoteMeta, error) {
	results := make([]*VoteMeta, len(infos))

	g, gctx := errgroup.WithContext(parent)
	g.SetLimit(v.concurrency)

	for i := range infos {
		if gctx.Err() != nil {
			break
		}
		if v.progress != nil {
			v.progress(infos[i])
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, err := v.voteMeta(gctx, infos[i])
			if err != nil {
				return err
			}
			results[i] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	metas := make([]VoteMeta, 0, len(infos))
	for _, m := range results {
		if m != nil {
			metas = append(metas, *m)
		}
	}
	return metas, nil
}

func (v *Viewer) voteMeta(ctx context.Context, info rpc.SignatureInfo) (*VoteMeta, error) {
	tx, err := v.ledger.GetTransaction(ctx, info.Signature)
	if err != nil {
		return nil, errors.New("fetch transaction " + info.Signature.String()).Wrap(err)
	}
	vote, err := solana.SimpleVote(tx.Transaction)
	if err != nil {
		v.l.Debug("not a simple vote", zap.Stringer("signature", info.Signature), zap.Error(err))
		return nil, nil
	}
	if len(vote.Slots) == 0 {
		return nil, nil
	}
	slots := append([]solana.Slot(nil), vote.Slots...)
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return &VoteMeta{
		Signature:  info.Signature,
		Success:    !info.Err.Failed(),
		VoteSlots:  slots,
		LandedSlot: info.Slot,
	}, nil
}
