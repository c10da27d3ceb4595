package cmd

import (
	"fmt"
	"os"

	"payment-reconciliation-service/cmd/reconciler/config"
	"payment-reconciliation-service/internal/matcher"
	"payment-reconciliation-service/internal/parsers"
	"payment-reconciliation-service/internal/reporter"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	paymentsFile       string
	invoicesFile       string
	outputFormat       string
	outputFile         string
	maxCombinationSize int
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile payment and invoice files",
	Long: `Reconcile matches a batch of payments against a batch of invoices and
reports the committed matches and the leftovers.

This command requires:
- A payments file (JSON array of payment records)
- An invoices file (JSON array of invoice records)

Examples:
  # Basic reconciliation
  reconciler reconcile --payments-file payments.json --invoices-file invoices.json

  # JSON report to a file
  reconciler reconcile --payments-file payments.json --invoices-file invoices.json \
    --output-format json --output-file report.json

  # Allow combinations of up to 4 records
  reconciler reconcile --payments-file payments.json --invoices-file invoices.json \
    --max-combination-size 4`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&paymentsFile, "payments-file", "p", "", "path to payments JSON file (required)")
	reconcileCmd.Flags().StringVarP(&invoicesFile, "invoices-file", "i", "", "path to invoices JSON file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching configuration flags
	reconcileCmd.Flags().IntVar(&maxCombinationSize, "max-combination-size", 3, "maximum records per combination match")

	reconcileCmd.MarkFlagRequired("payments-file")
	reconcileCmd.MarkFlagRequired("invoices-file")

	viper.BindPFlag("payments-file", reconcileCmd.Flags().Lookup("payments-file"))
	viper.BindPFlag("invoices-file", reconcileCmd.Flags().Lookup("invoices-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("max-combination-size", reconcileCmd.Flags().Lookup("max-combination-size"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values allow overrides from the config file and environment
	paymentsFile = viper.GetString("payments-file")
	invoicesFile = viper.GetString("invoices-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	maxCombinationSize = viper.GetInt("max-combination-size")

	if paymentsFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "payments-file", "", nil).
			WithSuggestion("provide --payments-file")
	}
	if invoicesFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "invoices-file", "", nil).
			WithSuggestion("provide --invoices-file")
	}
	if !reporter.OutputFormat(outputFormat).IsValid() {
		return errors.ValidationError(errors.CodeOutOfRange, "output-format", outputFormat, nil).
			WithSuggestion("use console, json or csv")
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()
	log := logger.GetGlobalLogger().WithComponent("cli")

	payments, err := parsers.LoadPaymentsFile(paymentsFile)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	invoices, err := parsers.LoadInvoicesFile(invoicesFile)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	log.WithFields(logger.Fields{
		"payments": len(payments),
		"invoices": len(invoices),
	}).Info("Starting reconciliation")

	cfg := config.CreateMatchingConfig(maxCombinationSize)

	result, err := matcher.Reconcile(cfg, payments, invoices)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	rep, err := reporter.NewReporter(reporter.OutputFormat(outputFormat))
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			os.Exit(handler.HandleError(errors.FileError(errors.CodeFileNotFound, outputFile, err)))
		}
		defer f.Close()
		out = f
	}

	if err := rep.Write(out, result); err != nil {
		os.Exit(handler.HandleError(err))
	}

	if outputFile != "" {
		fmt.Printf("Report written to %s\n", outputFile)
	}

	log.WithFields(logger.Fields{
		"matches":            len(result.Matches),
		"unmatched_payments": len(result.UnmatchedPayments),
		"unmatched_invoices": len(result.UnmatchedInvoices),
	}).Info("Reconciliation complete")

	return nil
}
