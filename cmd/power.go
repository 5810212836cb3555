package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smart-stay/internal/devices"
	"smart-stay/internal/power"
	"smart-stay/internal/storage"
)

var historyDays int

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Show and switch the property's power",
}

var powerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last logged power state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		latest, err := provider.LatestPowerHistory(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("No power history yet")
			return
		}
		if err != nil {
			slog.Error("Failed to read power history", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Power:  %s\n", onOff(latest.IsOn))
		fmt.Printf("Source: %s\n", latest.Source)
		fmt.Printf("Since:  %s\n", latest.Timestamp.Local().Format(time.DateTime))
	},
}

func switchCommand(action devices.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: fmt.Sprintf("Switch the power %s now", action),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := newServices()
			defer s.Close()

			if err := s.tokens.Load(ctx); err != nil {
				slog.Warn("Failed to load persisted refresh token", "error", err)
			}

			result := s.dispatcher.ControlByAction(ctx, action)
			if !result.Success {
				slog.Error("Command failed", "action", action, "device_id", result.DeviceID, "error", result.Err)
				os.Exit(1)
			}
			if result.Rebound != nil {
				fmt.Printf("Device %s refused the command, used %s instead\n", result.Rebound.From, result.Rebound.To)
			}

			source := power.SourceRemoteCommand
			if _, err := s.recorder.RecordTransition(ctx, power.Transition{
				IsOn:      action.IsOn(),
				Source:    source,
				BookingID: &source,
			}); err != nil {
				slog.Warn("Command sent but not logged", "error", err)
			}
			fmt.Printf("Power %s command sent to %s\n", action, result.DeviceID)
		},
	}
}

var powerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged power transitions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		since := time.Now().Add(-time.Duration(historyDays) * 24 * time.Hour)
		entries, err := provider.ListPowerHistory(ctx, since, 500)
		if err != nil {
			slog.Error("Failed to list power history", "error", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Printf("No power history in the last %d days\n", historyDays)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tPOWER\tSOURCE\tBATTERY\tBOOKING")
		for _, e := range entries {
			battery := ""
			if e.Battery != nil {
				battery = fmt.Sprintf("%d%%", *e.Battery)
			}
			booking := ""
			if e.BookingID != nil {
				booking = *e.BookingID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime),
				onOff(e.IsOn),
				e.Source,
				battery,
				booking,
			)
		}
		w.Flush()
	},
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func init() {
	powerHistoryCmd.Flags().IntVar(&historyDays, "days", 30, "number of days to list")

	powerCmd.AddCommand(powerStatusCmd)
	powerCmd.AddCommand(switchCommand(devices.ActionOn))
	powerCmd.AddCommand(switchCommand(devices.ActionOff))
	powerCmd.AddCommand(powerHistoryCmd)
	rootCmd.AddCommand(powerCmd)
}
