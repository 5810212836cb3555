package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reservation reconciliation pass",
	Long:  `Powers the property on ahead of check-ins and off after check-outs, once. Suitable for cron.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := newServices()
		defer s.Close()

		if err := s.tokens.Load(ctx); err != nil {
			slog.Warn("Failed to load persisted refresh token", "error", err)
		}
		restorePowerState(ctx, s)

		summary, err := s.reconciler.Pass(ctx)
		if err != nil {
			slog.Error("Reconciliation failed", "error", err)
			os.Exit(1)
		}

		fmt.Printf("Check-ins in window: %d, check-outs in window: %d\n", summary.CheckIns, summary.CheckOuts)
		if summary.SkippedReason != "" {
			fmt.Printf("Skipped: %s\n", summary.SkippedReason)
		}
		if len(summary.Steps) == 0 {
			fmt.Println("Nothing to do")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tBOOKING\tCODE\tCOMMAND\tDEVICE\tSUCCESS\tERROR")
		for _, step := range summary.Steps {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%t\t%s\n",
				step.Kind,
				step.BookingID,
				step.ReservationCode,
				step.Command.Command,
				step.Command.DeviceID,
				step.Command.Success,
				step.Error,
			)
		}
		w.Flush()
	},
}

// restorePowerState seeds the in-process state from the newest history entry, so
// one-shot commands do not act on the default off state.
func restorePowerState(ctx context.Context, s *services) {
	latest, err := provider.LatestPowerHistory(ctx)
	if err != nil || latest == nil {
		slog.Debug("No power history to restore from", "error", err)
		return
	}
	s.recorder.Restore(*latest)
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
