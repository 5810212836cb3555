package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smart-stay/internal/devices"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Inspect SmartThings devices and bindings",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices visible to the account",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := newServices()
		defer s.Close()

		if err := s.tokens.Load(ctx); err != nil {
			slog.Warn("Failed to load persisted refresh token", "error", err)
		}
		token, err := s.tokens.AccessToken(ctx, false)
		if err != nil {
			slog.Error("No access token", "error", err)
			os.Exit(1)
		}
		list, err := s.client.ListDevices(ctx, token)
		if err != nil {
			slog.Error("Failed to list devices", "error", err)
			os.Exit(1)
		}

		bound := map[string]string{}
		for action, b := range s.bindings.All() {
			if b.DeviceID != "" {
				bound[b.DeviceID] = string(action)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE ID\tNAME\tCATEGORIES\tBOUND")
		for _, d := range list {
			var categories []string
			for _, comp := range d.Components {
				for _, c := range comp.Categories {
					categories = append(categories, c.Name)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				d.DeviceID,
				d.DisplayName(),
				strings.Join(categories, ","),
				bound[d.DeviceID],
			)
		}
		w.Flush()
	},
}

var devicesResolveCmd = &cobra.Command{
	Use:   "resolve <on|off>",
	Short: "Find a replacement device for an action's binding",
	Long:  `Runs the same lookup used after a 403: a device whose label matches a keyword, else the first device of the fallback category.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		action, err := devices.ParseAction(args[0])
		if err != nil {
			slog.Error("Invalid action", "action", args[0], "error", err)
			os.Exit(1)
		}

		s := newServices()
		defer s.Close()
		if err := s.tokens.Load(ctx); err != nil {
			slog.Warn("Failed to load persisted refresh token", "error", err)
		}

		current, _ := s.bindings.Get(action)
		replacement, err := s.resolver.Resolve(ctx, current.DeviceID)
		if err != nil {
			slog.Error("No replacement device found", "action", action, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %s -> %s\n", action, current.DeviceID, replacement)
		fmt.Printf("Set smartthings.%s.device_id to persist the change\n", action)
	},
}

func init() {
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesResolveCmd)
	rootCmd.AddCommand(devicesCmd)
}
