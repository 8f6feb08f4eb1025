package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memberships-service",
	Short: "Membership packages, payments and expiry for the listing site",
	Long: `memberships-service sells listing packages, reconciles PayPal, bank
transfer and free checkouts into a per-subscriber membership ledger, and
expires memberships when their term ends.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
