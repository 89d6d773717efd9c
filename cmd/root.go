package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "registration",
	Short: "Event registration and payment service",
	Long:  `Backend for event registration, Paystack payment collection and receipt generation`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
