// Command stress-toggle fires concurrent availability actions at a running
// rectcopy resident and checks that it ends in a consistent state.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"pkt.systems/psi"
	"pkt.systems/pslog"

	"rectcopy/src/singleinstance"
)

type stressOptions struct {
	n        int
	action   string
	deadline time.Duration
}

type report struct {
	launched int
	ok       int32
	failed   int32
	missing  int32
	before   string
	after    string
	elapsed  time.Duration
}

func (r report) String() string {
	return fmt.Sprintf("launched=%d ok=%d err=%d missing=%d before=%s after=%s elapsed=%s",
		r.launched, r.ok, r.failed, r.missing, r.before, r.after, r.elapsed)
}

// consistent reports whether the final status is the one the actions imply.
func (r report) consistent(action singleinstance.Action) bool {
	switch action {
	case singleinstance.ActionOn:
		return r.after == singleinstance.StatusEnabled
	case singleinstance.ActionOff:
		return r.after == singleinstance.StatusDisabled
	case singleinstance.ActionToggle:
		if r.ok%2 == 0 {
			return r.after == r.before
		}
		return r.after != r.before
	default:
		return r.after == r.before
	}
}

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	opts := &stressOptions{}
	cmd := newRootCmd(opts, singleinstance.NewClient(), os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("stress run failed")
		return 1
	}
	return 0
}

func newRootCmd(opts *stressOptions, client singleinstance.Client, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-toggle",
		Short:         "Stress test availability delegation to a running resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := singleinstance.ParseAction(opts.action)
			if err != nil {
				return err
			}
			r, err := stress(cmd.Context(), client, action, *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, r)
			if !r.consistent(action) {
				return fmt.Errorf("inconsistent final status %s after %d %s actions from %s", r.after, r.ok, action, r.before)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.action, "action", "toggle", "toggle|on|off|status")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	return cmd
}

func stress(ctx context.Context, client singleinstance.Client, action singleinstance.Action, opts stressOptions) (report, error) {
	r := report{launched: opts.n}
	status := func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, opts.deadline)
		defer cancel()
		delegated, s, err := client.Send(ctx, singleinstance.ActionStatus)
		if err != nil {
			return "", err
		}
		if !delegated {
			return "", fmt.Errorf("no running rectcopy found")
		}
		return s, nil
	}
	var err error
	if r.before, err = status(); err != nil {
		return r, err
	}

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < opts.n; i++ {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()
			delegated, _, err := client.Send(ctx, action)
			switch {
			case err != nil:
				atomic.AddInt32(&r.failed, 1)
				pslog.Ctx(ctx).Debug("client failed", "err", err)
			case !delegated:
				atomic.AddInt32(&r.missing, 1)
			default:
				atomic.AddInt32(&r.ok, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	r.elapsed = time.Since(start)

	if r.after, err = status(); err != nil {
		return r, err
	}
	return r, nil
}
