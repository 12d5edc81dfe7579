package extraction_test

import (
	"fmt"

	"buyerportal/internal/extraction"
)

func Example() {
	text := `Telavox AB
Fakturanummer: 4410029384
Förfallodatum 2026-03-15
Summa (SEK) 12 500,50 (inkl. moms)
Bankgiro 5050-1055
# 4410029384123 # 1250050 >5050105#41#`

	fields := extraction.NewExtractor("Telavox AB").Extract(text).Fields()

	fmt.Println(fields.InvoiceNumber)
	fmt.Println(fields.Amount)
	fmt.Println(fields.DueDate)
	fmt.Println(fields.OCRNumber)
	fmt.Println(fields.Bankgiro)
	// Output:
	// 4410029384
	// 12500.50 kr
	// 2026-03-15
	// 4410029384123
	// 5050-1055
}

func ExampleResult_Unresolved() {
	res := extraction.NewExtractor("Telavox AB").Extract("Fakturanummer 4410029384")

	fmt.Println(res.Amount().String())
	fmt.Println(res.Unresolved())
	// Output:
	// Ej hittat
	// [amount dueDate ocrNumber bankgiro]
}
