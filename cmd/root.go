package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buyerportal/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "buyerportal",
	Short: "Buyer portal - invoice intake and FortusFlex financing",
	Long: `buyerportal runs the buyer-facing invoice portal.

Supplier invoices are uploaded as PDFs or images, read with OCR and parsed
with Swedish invoice heuristics (amount, due date, invoice number, OCR number,
bankgiro). Stored invoices move through pending, approved and paid, and
FortusFlex quotes price a later payment date for the buyer.

Run "buyerportal serve" for the HTTP API or use the commands below for
one-off processing, exports and payout imports.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetVerbose()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("buyerportal executed")

		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Show detailed processing information")
}
