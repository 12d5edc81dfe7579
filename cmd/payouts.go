package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buyerportal/internal/logger"
	"buyerportal/internal/payouts"
)

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Work with supplier payouts",
}

var payoutsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mark invoices paid from the payout sheet",
	Long: `Read booked payouts from Google Sheets and mark the matching approved
invoices as paid with their payout date and amount.

Expected columns:
  A - Fakturanummer
  B - Utbetalningsdatum (YYYY-MM-DD)
  C - Utbetalt belopp

Invoices that are already paid are skipped. Unknown invoice numbers and
invoices that are not approved yet are reported.

Required environment variables:
  GOOGLE_SHEET_URL - Google Sheets URL with the payout tab
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Service account
  DATABASE_URL - Postgres connection string

Optional environment variables:
  PAYOUT_SHEET_RANGE - Range to read (default: Utbetalningar!A2:C)`,
	Example: `  # Import payouts
  buyerportal payouts sync

  # Read another range
  buyerportal payouts sync --range "Mars!A2:C"`,
	Args: cobra.NoArgs,
	RunE: runPayoutsSync,
}

func init() {
	rootCmd.AddCommand(payoutsCmd)
	payoutsCmd.AddCommand(payoutsSyncCmd)

	payoutsSyncCmd.Flags().String("range", "", "Sheet range to read (default: PAYOUT_SHEET_RANGE)")
}

func runPayoutsSync(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payouts")

	rangeSpec, _ := cmd.Flags().GetString("range")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if rangeSpec == "" {
		rangeSpec = cfg.PayoutSheetRange
	}

	ctx, cancel := createContextWithTimeout(5*time.Minute, log)
	defer cancel()

	p, err := newPortal(ctx, cfg, portalOptions{Store: true}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	sheetsService, err := newSheetsService(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := payouts.NewSyncer(sheetsService, p.svc).Sync(ctx, rangeSpec)
	if err != nil {
		return fmt.Errorf("payout sync failed: %w", err)
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 UTBETALNINGAR")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Lästa rader:        %d\n", report.Read)
	fmt.Printf("Markerade utbetald: %d\n", report.Paid)
	fmt.Printf("Redan utbetalda:    %d\n", report.AlreadyPaid)
	if len(report.Unknown) > 0 {
		fmt.Printf("Okända fakturor:    %s\n", strings.Join(report.Unknown, ", "))
	}
	for _, f := range report.Failed {
		fmt.Printf("Rad %d: %s\n", f.Row, f.Reason)
	}

	return nil
}
