// Package parsers loads batches of raw payment and invoice records from
// JSON files for offline reconciliation runs. The file shapes mirror what
// the online stores return, so normalized entities behave identically in
// both modes.
package parsers

import (
	"encoding/json"
	"os"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// LoadPaymentsFile reads and normalizes a JSON array of raw payment records
func LoadPaymentsFile(path string) ([]*models.Payment, error) {
	log := logger.GetGlobalLogger().WithComponent("parsers")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	var raws []models.RawPayment
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, "payments", path, err).
			WithSuggestion("the file must contain a JSON array of payment records")
	}

	payments, err := models.NormalizePayments(raws)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"file":  path,
		"count": len(payments),
	}).Debug("Loaded payment records")

	return payments, nil
}

// LoadInvoicesFile reads and normalizes a JSON array of raw invoice records
func LoadInvoicesFile(path string) ([]*models.Invoice, error) {
	log := logger.GetGlobalLogger().WithComponent("parsers")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	var raws []models.RawInvoice
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, "invoices", path, err).
			WithSuggestion("the file must contain a JSON array of invoice records")
	}

	invoices, err := models.NormalizeInvoices(raws)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"file":  path,
		"count": len(invoices),
	}).Debug("Loaded invoice records")

	return invoices, nil
}
