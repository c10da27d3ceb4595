// Package postgres provides the invoice and payment stores backing the
// reconciliation service. Invoices live in relational tables; payment
// transactions are stored as jsonb documents and decoded into the raw
// record shapes the normalizer expects.
package postgres

import (
	"context"
	"strings"
	"time"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceRepository reads invoice records for reconciliation. Deleted
// invoices and invoices outside the open statuses (0 and 3) are never
// returned.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository constructs an invoice repository
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

const invoiceColumns = `partners.name,
	invoices.number,
	to_char(invoices.invoice_date, 'YYYY-MM-DD'),
	to_char(invoices.due_date, 'YYYY-MM-DD'),
	invoices.status::text,
	invoices.company_id,
	invoice_totals."grandTotalUnformatted"::text`

const invoiceJoins = `from invoices
	join invoice_totals on invoices.uuid = invoice_totals.invoice_id
	join partners on partners.uuid = invoices.partner_id
	and partners.company_id = invoices.company_id`

// FindByNumbers returns the open invoices with the given invoice numbers,
// ordered by invoice date then due date.
func (r *InvoiceRepository) FindByNumbers(ctx context.Context, numbers []string) ([]models.RawInvoice, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	query := `select ` + invoiceColumns + `
	` + invoiceJoins + `
	where invoices.number = any($1)
	and invoices.deleted_at is null
	and invoices.status in (0, 3)
	order by invoices.invoice_date, invoices.due_date`

	rows, err := r.pool.Query(ctx, query, numbers)
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
			WithContext("query", "invoices_by_numbers")
	}
	defer rows.Close()

	return scanInvoices(rows)
}

// FindByCompanyAndBuyers returns the company's open invoices issued to any
// of the given buyer names (case-insensitive) within the date window.
func (r *InvoiceRepository) FindByCompanyAndBuyers(ctx context.Context, companyID string, buyers []string, start, end time.Time) ([]models.RawInvoice, error) {
	if len(buyers) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(buyers))
	for i, name := range buyers {
		lowered[i] = strings.ToLower(name)
	}

	query := `select ` + invoiceColumns + `
	` + invoiceJoins + `
	where invoices.company_id = $1
	and lower(partners.name) = any($2)
	and invoices.invoice_date >= $3
	and invoices.invoice_date <= $4
	and invoices.deleted_at is null
	and invoices.status in (0, 3)
	order by invoices.invoice_date, invoices.due_date`

	rows, err := r.pool.Query(ctx, query, companyID, lowered, start, end)
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
			WithContext("query", "invoices_by_company_and_buyers").
			WithContext("company_id", companyID)
	}
	defer rows.Close()

	return scanInvoices(rows)
}

func scanInvoices(rows pgx.Rows) ([]models.RawInvoice, error) {
	var invoices []models.RawInvoice
	for rows.Next() {
		var inv models.RawInvoice
		var amount string
		if err := rows.Scan(
			&inv.Name,
			&inv.InvoiceNumber,
			&inv.InvoiceDate,
			&inv.DueDate,
			&inv.InvoiceStatus,
			&inv.CompanyID,
			&amount,
		); err != nil {
			return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
				WithContext("query", "scan_invoice")
		}
		inv.GrandTotalUnformatted = models.FlexNumber(amount)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err)
	}
	return invoices, nil
}
