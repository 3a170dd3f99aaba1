package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/oneconcern/voteview/pkg/metrics"
	"github.com/oneconcern/voteview/pkg/rpc"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/oneconcern/voteview/pkg/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var voter = solana.Pubkey{0xa}

type streamStep struct {
	slot *rpc.SlotInfo
	vote *rpc.VoteNotification
}

func slotStep(slot, parent solana.Slot) streamStep {
	return streamStep{slot: &rpc.SlotInfo{Slot: slot, Parent: parent}}
}

func voteStep(slots ...solana.Slot) streamStep {
	return streamStep{vote: &rpc.VoteNotification{VotePubkey: voter, Slots: slots}}
}

// forkStream votes on 0 <- 1 <- 2 then switches to the competing fork 0 <- 3
func forkStream() []streamStep {
	return []streamStep{
		slotStep(0, 0),
		slotStep(1, 0),
		slotStep(2, 1),
		slotStep(3, 0),
		voteStep(0, 1, 2),
		slotStep(4, 3),
		voteStep(3),
		slotStep(5, 4),
	}
}

// feed sends steps one at a time on unbuffered channels, so that the follower sees them in order.
// The returned sent channel is closed once the follower received every step.
func feed(ctx context.Context, steps []streamStep) (<-chan rpc.VoteNotification, <-chan rpc.SlotInfo, <-chan struct{}) {
	votes := make(chan rpc.VoteNotification)
	slots := make(chan rpc.SlotInfo)
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for _, step := range steps {
			switch {
			case step.slot != nil:
				select {
				case slots <- *step.slot:
				case <-ctx.Done():
					return
				}
			case step.vote != nil:
				select {
				case votes <- *step.vote:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return votes, slots, sent
}

func newTestFollower(keepGoing bool) (*voteFollower, *bytes.Buffer) {
	var out bytes.Buffer
	return &voteFollower{
		tracker:   vote.NewTracker(),
		out:       &out,
		keepGoing: keepGoing,
		l:         zap.NewNop(),
	}, &out
}

func TestFollow_StopsOnViolation(t *testing.T) {
	_ = setupTests(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, out := newTestFollower(false)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewVoteMetrics(reg)
	require.NoError(t, err)
	f.metrics = m

	votes, slots, _ := feed(ctx, forkStream())
	err = f.follow(ctx, votes, slots)

	var violation *vote.LockoutViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, solana.Slot(3), violation.Slot)

	text := out.String()
	assert.Contains(t, text, "   slot 2:\n")
	assert.Contains(t, text, "tower depth: 3, credits: 0")
	assert.Contains(t, text, "   slot 3:\n  VIOLATION: ")

	// the violating vote is replayed as soon as it arrives: slot 5 is never read
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Votes.Received))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Slots.Received))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Slots.Highest))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Votes.Events.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Votes.Events.WithLabelValues("violation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validators), "validators are updated after each batch of events")
}

func TestFollow_KeepGoing(t *testing.T) {
	_ = setupTests(t)
	ctx, cancel := context.WithCancel(context.Background())

	f, out := newTestFollower(true)
	votes, slots, sent := feed(ctx, append(forkStream(), voteStep(4), slotStep(6, 5)))

	done := make(chan error, 1)
	go func() { done <- f.follow(ctx, votes, slots) }()

	// the last slot is handled before the follower looks at the context again
	<-sent
	cancel()
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "   slot 3:\n  VIOLATION: ")
	assert.Contains(t, text, "   slot 4:\n")
	assert.Zero(t, f.tracker.Pending())
	state, ok := f.tracker.State(voter)
	require.True(t, ok)
	last, _ := state.LastVotedSlot()
	assert.Equal(t, solana.Slot(4), last)
}

func TestFollow_VoteOnKnownSlots(t *testing.T) {
	_ = setupTests(t)
	ctx, cancel := context.WithCancel(context.Background())

	f, out := newTestFollower(false)
	votes, slots, sent := feed(ctx, []streamStep{
		slotStep(0, 0),
		slotStep(1, 0),
		slotStep(2, 1),
		voteStep(1, 2),
	})

	done := make(chan error, 1)
	go func() { done <- f.follow(ctx, votes, slots) }()

	<-sent
	cancel()
	require.NoError(t, <-done)

	assert.Zero(t, f.tracker.Pending(), "no later slot is needed to replay the vote")
	assert.Contains(t, out.String(), "   slot 2:\n")
	assert.Contains(t, out.String(), "tower depth: 2, credits: 0")
}

type fakePubsub struct {
	votes        chan rpc.VoteNotification
	slots        chan rpc.SlotInfo
	err          error
	unsubscribed int
}

func (p *fakePubsub) VoteSubscribe(context.Context) (<-chan rpc.VoteNotification, func() error, error) {
	return p.votes, p.unsubscribe, nil
}

func (p *fakePubsub) SlotSubscribe(context.Context) (<-chan rpc.SlotInfo, func() error, error) {
	return p.slots, p.unsubscribe, nil
}

func (p *fakePubsub) Err() error { return p.err }

func (p *fakePubsub) unsubscribe() error {
	p.unsubscribed++
	return nil
}

func TestStreamVotes_ConnectionLost(t *testing.T) {
	_ = setupTests(t)
	p := &fakePubsub{
		votes: make(chan rpc.VoteNotification),
		slots: make(chan rpc.SlotInfo),
		err:   errors.New("read: unexpected EOF"),
	}
	close(p.votes)

	f, _ := newTestFollower(false)
	err := streamVotes(context.Background(), p, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStreamClosed))
	assert.Contains(t, err.Error(), "unexpected EOF")
	assert.Equal(t, 2, p.unsubscribed)
}
