package postgres

import (
	"context"
	"encoding/json"
	"time"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository reads payment transaction documents. Transactions are
// ingested as-is from the payment gateway into a jsonb column, so lookups
// filter on document fields rather than relational columns.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository constructs a payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// FindByExternalIDs returns the payment documents with the given external ids
func (r *PaymentRepository) FindByExternalIDs(ctx context.Context, externalIDs []string) ([]models.RawPayment, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	const query = `select doc
	from payment_reconciliation_transactions
	where doc->>'external_id' = any($1)`

	rows, err := r.pool.Query(ctx, query, externalIDs)
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
			WithContext("query", "payments_by_external_ids")
	}
	defer rows.Close()

	return scanPayments(rows)
}

// FindByCompanySince returns the company's payment documents created on or
// after the given date.
func (r *PaymentRepository) FindByCompanySince(ctx context.Context, companyID string, since time.Time) ([]models.RawPayment, error) {
	const query = `select doc
	from payment_reconciliation_transactions
	where doc->>'company_id' = $1
	and doc->>'created_at' >= $2`

	rows, err := r.pool.Query(ctx, query, companyID, since.Format("2006-01-02"))
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
			WithContext("query", "payments_by_company_since").
			WithContext("company_id", companyID)
	}
	defer rows.Close()

	return scanPayments(rows)
}

func scanPayments(rows pgx.Rows) ([]models.RawPayment, error) {
	var payments []models.RawPayment
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err).
				WithContext("query", "scan_payment")
		}

		var p models.RawPayment
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, "doc", string(doc), err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, "postgres", err)
	}
	return payments, nil
}
