// Package reporter renders reconciliation results for offline runs.
//
// Supported output formats:
//   - Console: human-readable summary and tables for terminal display
//   - JSON: the full result document for programmatic consumption
//   - CSV: one row per match for spreadsheet analysis
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"payment-reconciliation-service/internal/matcher"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Reporter renders matching results in the configured format
type Reporter struct {
	format OutputFormat
}

// NewReporter creates a reporter for the given format
func NewReporter(format OutputFormat) (*Reporter, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid output format: %s", format)
	}
	return &Reporter{format: format}, nil
}

// Write renders the result to w
func (r *Reporter) Write(w io.Writer, result *matcher.Result) error {
	switch r.format {
	case FormatJSON:
		return r.writeJSON(w, result)
	case FormatCSV:
		return r.writeCSV(w, result)
	default:
		return r.writeConsole(w, result)
	}
}

func (r *Reporter) writeJSON(w io.Writer, result *matcher.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (r *Reporter) writeCSV(w io.Writer, result *matcher.Result) error {
	cw := csv.NewWriter(w)

	header := []string{
		"external_id", "invoice_number", "payment_amount", "invoice_amount",
		"difference", "score", "status", "type", "ontime",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, m := range result.Matches {
		row := []string{
			strings.Join(m.ExternalID, "|"),
			strings.Join(m.InvoiceNumber, "|"),
			formatFloat(m.PaymentAmount),
			formatFloat(m.InvoiceAmount),
			formatFloat(m.Difference),
			formatFloat(m.Score),
			m.Status,
			m.Type,
			strconv.Itoa(m.Ontime),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func (r *Reporter) writeConsole(w io.Writer, result *matcher.Result) error {
	fmt.Fprintln(w, "RECONCILIATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Matches:            %d\n", len(result.Matches))
	fmt.Fprintf(w, "Unmatched payments: %d\n", len(result.UnmatchedPayments))
	fmt.Fprintf(w, "Unmatched invoices: %d\n", len(result.UnmatchedInvoices))
	fmt.Fprintln(w)

	if len(result.Matches) > 0 {
		fmt.Fprintln(w, "MATCHES")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, m := range result.Matches {
			fmt.Fprintf(w, "%-30s -> %-30s\n", strings.Join(m.ExternalID, ", "), strings.Join(m.InvoiceNumber, ", "))
			fmt.Fprintf(w, "    %s (score %.2f, difference %.2f)\n", m.Status, m.Score, m.Difference)
		}
		fmt.Fprintln(w)
	}

	if len(result.UnmatchedPayments) > 0 {
		fmt.Fprintln(w, "UNMATCHED PAYMENTS")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, p := range result.UnmatchedPayments {
			fmt.Fprintf(w, "%-30s %15.2f\n", p.ExternalID, p.Amount)
		}
		fmt.Fprintln(w)
	}

	if len(result.UnmatchedInvoices) > 0 {
		fmt.Fprintln(w, "UNMATCHED INVOICES")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, inv := range result.UnmatchedInvoices {
			fmt.Fprintf(w, "%-30s %15.2f\n", inv.InvoiceID, inv.Amount)
		}
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
