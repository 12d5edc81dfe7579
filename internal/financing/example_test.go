package financing_test

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"buyerportal/internal/financing"
)

func ExampleCalculator_Quote() {
	calc, err := financing.NewCalculator(financing.DefaultConfig(financing.ModelPerPeriod))
	if err != nil {
		log.Fatal(err)
	}

	amount := decimal.NewNullDecimal(decimal.RequireFromString("12500.50"))
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	quote, err := calc.Quote(amount, due, 30)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(quote.Fee.StringFixed(2))
	fmt.Println(quote.TotalCost.StringFixed(2))
	fmt.Println(quote.NewDueDate.Format("2006-01-02"))
	// Output:
	// 187.51
	// 12688.01
	// 2026-04-14
}

func ExampleConfig_ExtensionOptions() {
	fmt.Println(financing.DefaultConfig(financing.ModelPerDay).ExtensionOptions())
	// Output: [30 40 50 60 70 80 90]
}
