package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the SmartThings credential pair",
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token now",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := newServices()
		defer s.Close()

		if err := s.tokens.Load(ctx); err != nil {
			slog.Error("Failed to load persisted refresh token", "error", err)
			os.Exit(1)
		}
		if _, err := s.tokens.Refresh(ctx); err != nil {
			slog.Error("Token refresh failed", "error", err)
			os.Exit(1)
		}
		printTokenState(s)
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored credential state with secrets masked",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := newServices()
		defer s.Close()

		if err := s.tokens.Load(ctx); err != nil {
			slog.Error("Failed to load persisted refresh token", "error", err)
			os.Exit(1)
		}
		printTokenState(s)
	},
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <refresh_token>",
	Short: "Store a new refresh token, e.g. after re-authorizing the app",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := newServices()
		defer s.Close()

		if err := s.tokens.SetRefreshToken(ctx, args[0]); err != nil {
			slog.Error("Failed to store refresh token", "error", err)
			os.Exit(1)
		}
		fmt.Println("Refresh token stored")
		printTokenState(s)
	},
}

func printTokenState(s *services) {
	state := s.tokens.State()
	fmt.Printf("Access token:   %t\n", state.HasAccessToken)
	fmt.Printf("Refresh token:  %s\n", state.RefreshTokenHint)
	if !state.LastRefreshed.IsZero() {
		fmt.Printf("Last refreshed: %s\n", state.LastRefreshed.Format(time.RFC3339))
	}
}

func init() {
	tokenCmd.AddCommand(tokenRefreshCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	rootCmd.AddCommand(tokenCmd)
}
