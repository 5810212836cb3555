package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"smart-stay/internal/jwt"
)

var operatorTTL time.Duration

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operator access to the API",
}

var operatorTokenCmd = &cobra.Command{
	Use:   "token <name>",
	Short: "Issue a bearer token for the guarded API routes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ttl := operatorTTL
		if ttl == 0 {
			ttl = time.Duration(cfg.OperatorTokenTTL) * time.Minute
		}

		token, err := jwt.NewOperatorToken(cfg.Secret, args[0], ttl)
		if err != nil {
			slog.Error("Failed to issue operator token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
	},
}

func init() {
	operatorTokenCmd.Flags().DurationVar(&operatorTTL, "ttl", 0, "token lifetime (default operator_token_ttl)")

	operatorCmd.AddCommand(operatorTokenCmd)
	rootCmd.AddCommand(operatorCmd)
}
