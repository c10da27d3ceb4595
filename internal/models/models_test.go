package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFlexNumberUnmarshal(t *testing.T) {
	var doc struct {
		AsNumber FlexNumber `json:"as_number"`
		AsString FlexNumber `json:"as_string"`
		AsNull   FlexNumber `json:"as_null"`
	}

	raw := `{"as_number": 1500000.5, "as_string": "30", "as_null": null}`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Unexpected unmarshal error: %v", err)
	}

	if doc.AsNumber.String() != "1500000.5" {
		t.Errorf("Expected '1500000.5', got '%s'", doc.AsNumber.String())
	}

	if v, err := doc.AsString.Int(); err != nil || v != 30 {
		t.Errorf("Expected 30, got %d (err: %v)", v, err)
	}

	if !doc.AsNull.IsEmpty() {
		t.Error("Expected null value to be empty")
	}
}

func TestParsePaymentTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "UTC with Z suffix",
			input:    "2024-01-15T10:30:00Z",
			expected: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "explicit positive offset converted to UTC",
			input:    "2024-01-15T10:30:00+07:00",
			expected: time.Date(2024, 1, 15, 3, 30, 0, 0, time.UTC),
		},
		{
			name:     "explicit negative offset converted to UTC",
			input:    "2024-01-15T22:30:00-05:00",
			expected: time.Date(2024, 1, 16, 3, 30, 0, 0, time.UTC),
		},
		{
			name:     "malformed offset falls back to prefix",
			input:    "2024-01-15T10:30:00+0700",
			expected: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "no offset at all",
			input:    "2024-01-15T10:30:00",
			expected: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:    "garbage input",
			input:   "not-a-date",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePaymentTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for input '%s'", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNormalizePayment(t *testing.T) {
	raw := RawPayment{
		ExternalID: "PAY-001",
		GrandTotal: "1000000",
		CreatedAt:  "2024-01-15T10:30:00Z",
		CompanyID:  "company-1",
		BuyerName:  "PT Maju Jaya",
	}

	p, err := NormalizePayment(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if p.ExternalID != "PAY-001" {
		t.Errorf("Expected external id PAY-001, got %s", p.ExternalID)
	}

	if !p.Amount.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("Expected amount 1000000, got %s", p.Amount)
	}

	if !p.Date.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date: %v", p.Date)
	}
}

func TestNormalizePaymentInvalidAmount(t *testing.T) {
	raw := RawPayment{
		ExternalID: "PAY-002",
		GrandTotal: "not-a-number",
		CreatedAt:  "2024-01-15T10:30:00Z",
	}

	if _, err := NormalizePayment(raw); err == nil {
		t.Fatal("Expected error for unparseable amount")
	}
}

func TestNormalizePaymentMissingID(t *testing.T) {
	raw := RawPayment{
		GrandTotal: "100",
		CreatedAt:  "2024-01-15T10:30:00Z",
	}

	if _, err := NormalizePayment(raw); err == nil {
		t.Fatal("Expected error for missing external id")
	}
}

func TestNormalizeInvoice(t *testing.T) {
	raw := RawInvoice{
		InvoiceNumber:         "INV-001",
		GrandTotalUnformatted: "1000000",
		InvoiceDate:           "2024-01-10",
		DueDate:               "2024-02-09",
		CompanyID:             "company-1",
		Name:                  "PT Maju Jaya",
		Top:                   "30",
		InvoiceStatus:         "0",
	}

	inv, err := NormalizeInvoice(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if inv.InvoiceID != "INV-001" {
		t.Errorf("Expected invoice id INV-001, got %s", inv.InvoiceID)
	}

	if inv.Top == nil || *inv.Top != 30 {
		t.Errorf("Expected top 30, got %v", inv.Top)
	}

	if !inv.DueDate.Equal(time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected due date: %v", inv.DueDate)
	}
}

func TestNormalizeInvoiceDerivesTop(t *testing.T) {
	raw := RawInvoice{
		InvoiceNumber:         "INV-002",
		GrandTotalUnformatted: "500000",
		InvoiceDate:           "2024-01-01",
		DueDate:               "2024-01-31",
	}

	inv, err := NormalizeInvoice(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if inv.Top == nil || *inv.Top != 30 {
		t.Errorf("Expected derived top of 30 days, got %v", inv.Top)
	}
}

func TestNormalizeInvoiceInvalidDateFatal(t *testing.T) {
	raw := RawInvoice{
		InvoiceNumber:         "INV-003",
		GrandTotalUnformatted: "500000",
		InvoiceDate:           "01/15/2024",
		DueDate:               "2024-01-31",
	}

	if _, err := NormalizeInvoice(raw); err == nil {
		t.Fatal("Expected error for non YYYY-MM-DD invoice date")
	}
}

func TestNormalizePaymentsAbortsOnFirstError(t *testing.T) {
	raws := []RawPayment{
		{ExternalID: "PAY-001", GrandTotal: "100", CreatedAt: "2024-01-15T10:30:00Z"},
		{ExternalID: "PAY-002", GrandTotal: "bad", CreatedAt: "2024-01-15T10:30:00Z"},
		{ExternalID: "PAY-003", GrandTotal: "300", CreatedAt: "2024-01-15T10:30:00Z"},
	}

	if _, err := NormalizePayments(raws); err == nil {
		t.Fatal("Expected batch normalization to abort on bad record")
	}
}

func TestSortPaymentsByDateStable(t *testing.T) {
	sameDay := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	payments := []*Payment{
		{ExternalID: "B", Date: sameDay},
		{ExternalID: "C", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ExternalID: "A", Date: sameDay},
	}

	sorted := SortPaymentsByDate(payments)

	if sorted[0].ExternalID != "C" {
		t.Errorf("Expected earliest payment first, got %s", sorted[0].ExternalID)
	}

	// Tied dates keep input order
	if sorted[1].ExternalID != "B" || sorted[2].ExternalID != "A" {
		t.Errorf("Expected stable order B, A for tied dates, got %s, %s",
			sorted[1].ExternalID, sorted[2].ExternalID)
	}

	// Input slice is untouched
	if payments[0].ExternalID != "B" {
		t.Error("Expected input slice to be left unmodified")
	}
}
