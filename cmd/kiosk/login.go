package main

import (
	"github.com/spf13/cobra"

	"github.com/facepin/kiosk/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the face + PIN login terminal",
	Long: `Stream the camera to the backend for face recognition, follow the
gesture PIN entry on the keypad, and show the confirmation page.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), session.FlowAuthentication)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
