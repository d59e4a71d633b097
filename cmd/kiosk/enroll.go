package main

import (
	"github.com/spf13/cobra"

	"github.com/facepin/kiosk/internal/session"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Run the operator enrollment station",
	Long: `Capture a reference face for a new user and register the user
with a 4-digit PIN and an opening balance.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), session.FlowEnrollment)
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
