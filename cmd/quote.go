package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"buyerportal/internal/extraction"
	"buyerportal/internal/invoice"
	"buyerportal/internal/logger"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a FortusFlex payment extension",
	Long: `Compute the fee, total cost and new due date for paying an invoice later.

Price a stored invoice with --invoice-id or any amount with --amount and
--due-date. The pricing model and rates come from PRICING_MODEL,
FEE_RATE_PER_PERIOD and FEE_RATE_PER_DAY.`,
	Example: `  # 30 days on 12 500,50 kr due 2026-03-15
  buyerportal quote --amount 12500.50 --due-date 2026-03-15 --days 30

  # Quote a stored invoice
  buyerportal quote --invoice-id 7b0e3a52-4c55-4f3e-9d4e-1b2a3c4d5e6f --days 60`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().String("amount", "", "Invoice amount in SEK")
	quoteCmd.Flags().String("due-date", "", "Original due date (YYYY-MM-DD)")
	quoteCmd.Flags().Int("days", 30, "Extension in days")
	quoteCmd.Flags().String("invoice-id", "", "Quote a stored invoice instead of --amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("quote")

	amountStr, _ := cmd.Flags().GetString("amount")
	dueDateStr, _ := cmd.Flags().GetString("due-date")
	days, _ := cmd.Flags().GetInt("days")
	invoiceIDStr, _ := cmd.Flags().GetString("invoice-id")

	req := invoice.QuoteRequest{ExtensionDays: days}
	switch {
	case invoiceIDStr != "":
		id, err := uuid.Parse(invoiceIDStr)
		if err != nil {
			return fmt.Errorf("invalid invoice id: %s", invoiceIDStr)
		}
		req.InvoiceID = id
	case amountStr != "":
		amount := extraction.ParseAmount(amountStr)
		if !amount.Valid {
			return fmt.Errorf("invalid amount: %s", amountStr)
		}
		req.Amount = amount
	default:
		return fmt.Errorf("either --amount or --invoice-id is required")
	}
	if dueDateStr != "" {
		due, err := time.Parse(extraction.DateLayout, dueDateStr)
		if err != nil {
			return fmt.Errorf("invalid due date %q, expected YYYY-MM-DD", dueDateStr)
		}
		req.DueDate = due
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Minute, log)
	defer cancel()

	p, err := newPortal(ctx, cfg, portalOptions{Store: req.InvoiceID != uuid.Nil}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	quote, err := p.svc.Quote(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute quote: %w", err)
	}

	log.Debug().
		Str("model", string(quote.Model)).
		Int("days", quote.ExtensionDays).
		Str("fee", quote.Fee.StringFixed(2)).
		Msg("Quote computed")

	newDue := extraction.NotFound
	if !quote.NewDueDate.IsZero() {
		newDue = quote.NewDueDate.Format(extraction.DateLayout)
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 FORTUSFLEX")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Förlängning:        %d dagar (%d perioder)\n", quote.ExtensionDays, quote.Periods)
	fmt.Printf("Prismodell:         %s\n", quote.Model)
	fmt.Printf("Avgift:             %s kr (%s%%)\n", quote.Fee.StringFixed(2), quote.FeePercent.StringFixed(2))
	fmt.Printf("Totalt att betala:  %s kr\n", quote.TotalCost.StringFixed(2))
	fmt.Printf("Nytt förfallodatum: %s\n", newDue)
	if quote.IsZero() {
		fmt.Println()
		fmt.Println("Beloppet är okänt, ingen avgift beräknad.")
	}

	return nil
}
