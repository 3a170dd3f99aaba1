// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/oneconcern/voteview/pkg/metrics"
	"github.com/oneconcern/voteview/pkg/rpc"
	"github.com/oneconcern/voteview/pkg/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// violationExitCode is the exit status after a lockout violation
const violationExitCode = 2

var errStreamClosed = errors.New("notification stream closed")

var (
	warnColor      = color.New(color.FgYellow)
	violationColor = color.New(color.FgRed, color.Bold)
)

var votesCmd = &cobra.Command{
	Use:   "votes",
	Short: "Stream votes",
	Long: `Follows the votes and slots streamed by a cluster, and replays the tower of
every validator seen voting.

Votes are processed once the slot stream caught up with them. A vote that the
validator's own tower locks out is a lockout violation: it is reported, and the
command exits with status 2 unless --keep-going is set.`,
	Example: `% voteview votes --url t --metrics-addr :9090`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inputs := newCliOptionInputs(config, &voteviewFlags)
		logger, err := inputs.getLogger()
		if err != nil {
			wrapFatalln("failed to set log level", err)
			return
		}
		cfg, err := inputs.solanaConfig()
		if err != nil {
			wrapFatalln("resolve cluster configuration", err)
			return
		}
		out := cmd.OutOrStdout()
		if voteviewFlags.root.verbose {
			fmt.Fprintf(out, "Websocket URL: %s\n", cfg.WebsocketURL)
		}

		follower := &voteFollower{
			tracker: vote.NewTracker(
				vote.SlotWindow(voteviewFlags.votes.slotWindow),
				vote.TrackerLogger(logger),
			),
			out:       out,
			keepGoing: voteviewFlags.votes.keepGoing,
			l:         logger,
		}

		if addr := voteviewFlags.votes.metricsAddr; addr != "" {
			reg := prometheus.NewRegistry()
			follower.metrics, err = metrics.NewVoteMetrics(reg)
			if err != nil {
				wrapFatalln("register metrics", err)
				return
			}
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				wrapFatalln("listen for metrics on "+addr, err)
				return
			}
			go func() {
				if err := metrics.Serve(ctx, lis, reg, logger); err != nil {
					logger.Error("metrics server", zap.Error(err))
				}
			}()
		}

		client, err := rpc.Dial(ctx, cfg.WebsocketURL, rpc.PubsubLogger(logger))
		if err != nil {
			wrapFatalln("connect to "+cfg.WebsocketURL, err)
			return
		}
		err = streamVotes(ctx, client, follower)
		err = multierr.Append(err, client.Close())

		var violation *vote.LockoutViolation
		switch {
		case err == nil:
		case errors.As(err, &violation):
			wrapFatalWithCode(violationExitCode, "lockout violation", err)
		default:
			wrapFatalln("follow votes", err)
		}
	},
}

type pubsub interface {
	VoteSubscribe(context.Context) (<-chan rpc.VoteNotification, func() error, error)
	SlotSubscribe(context.Context) (<-chan rpc.SlotInfo, func() error, error)
	Err() error
}

// streamVotes subscribes to votes and slots and feeds the follower until the context is done
func streamVotes(ctx context.Context, client pubsub, follower *voteFollower) (err error) {
	votes, unsubscribeVotes, err := client.VoteSubscribe(ctx)
	if err != nil {
		return errors.New("vote subscription").Wrap(err)
	}
	defer func() {
		err = multierr.Append(err, unsubscribeVotes())
	}()

	slots, unsubscribeSlots, err := client.SlotSubscribe(ctx)
	if err != nil {
		return errors.New("slot subscription").Wrap(err)
	}
	defer func() {
		err = multierr.Append(err, unsubscribeSlots())
	}()

	err = follower.follow(ctx, votes, slots)
	if errors.Is(err, errStreamClosed) {
		if cause := client.Err(); cause != nil {
			return errStreamClosed.Wrap(cause)
		}
	}
	return err
}

// voteFollower replays the vote stream and reports what happened to each vote
type voteFollower struct {
	tracker   *vote.Tracker
	out       io.Writer
	metrics   *metrics.VoteMetrics
	keepGoing bool
	l         *zap.Logger
}

func (f *voteFollower) follow(ctx context.Context, votes <-chan rpc.VoteNotification, slots <-chan rpc.SlotInfo) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-votes:
			if !ok {
				return errStreamClosed
			}
			f.l.Debug("vote", zap.Stringer("voter", n.VotePubkey), zap.Any("slots", n.Slots), zap.Stringer("signature", n.Signature))
			f.tracker.AddVote(n.VotePubkey, n.Vote())
			if f.metrics != nil {
				f.metrics.Votes.Received.Inc()
			}
			// votes on slots already seen need not wait for the next slot
			if err := f.report(f.tracker.Process()); err != nil {
				return err
			}
		case s, ok := <-slots:
			if !ok {
				return errStreamClosed
			}
			f.l.Debug("slot", zap.Uint64("slot", uint64(s.Slot)), zap.Uint64("parent", uint64(s.Parent)), zap.Uint64("root", uint64(s.Root)))
			f.tracker.AddSlot(s.Slot, s.Parent)
			if f.metrics != nil {
				f.metrics.Slots.Received.Inc()
				f.metrics.Slots.Highest.Set(float64(s.Slot))
			}
			if err := f.report(f.tracker.Process()); err != nil {
				return err
			}
		}
	}
}

// report prints events, and returns the first lockout violation unless told to keep going
func (f *voteFollower) report(events []vote.Event) error {
	var slot uint64
	for i, ev := range events {
		if i == 0 || uint64(ev.Slot) != slot {
			slot = uint64(ev.Slot)
			fmt.Fprintf(f.out, "   slot %d:\n", slot)
		}
		if f.metrics != nil {
			f.metrics.Votes.Events.WithLabelValues(ev.Kind.String()).Inc()
			f.metrics.Votes.Credits.WithLabelValues(ev.Voter.String()).Set(float64(ev.Credits))
		}

		switch ev.Kind {
		case vote.Processed:
			fmt.Fprintf(f.out, "  %s voted %v\n    tower depth: %d, credits: %d\n", ev.Voter, ev.Vote.Slots, ev.Depth, ev.Credits)
		case vote.Stale:
			fmt.Fprintf(f.out, "  %s stale vote %v\n", ev.Voter, ev.Vote.Slots)
		case vote.Skipped:
			warnColor.Fprintf(f.out, "  WARN: unable to process %s vote %v: %s\n", ev.Voter, ev.Vote.Slots, ev.Reason)
		case vote.Violation:
			violationColor.Fprintf(f.out, "  VIOLATION: %v\n", ev.Violation)
			if !f.keepGoing {
				return ev.Violation
			}
		}
	}
	if f.metrics != nil {
		f.metrics.Validators.Set(float64(f.tracker.Validators()))
	}
	return nil
}

func init() {
	addKeepGoingFlag(votesCmd)
	addMetricsAddrFlag(votesCmd)
	addSlotWindowFlag(votesCmd)
	rootCmd.AddCommand(votesCmd)
}
