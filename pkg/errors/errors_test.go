package errors

import (
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CategoryValidation, CodeMissingField, "test message")

	if err.Category != CategoryValidation {
		t.Errorf("Expected category %s, got %s", CategoryValidation, err.Category)
	}

	if err.Code != CodeMissingField {
		t.Errorf("Expected code %s, got %s", CodeMissingField, err.Code)
	}

	if err.Message != "test message" {
		t.Errorf("Expected message 'test message', got '%s'", err.Message)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(cause, CategoryStore, CodeQueryFailed, "query failed")

	if err.Cause != cause {
		t.Error("Expected cause to be preserved")
	}

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}

	if Wrap(nil, CategoryStore, CodeQueryFailed, "ignored") != nil {
		t.Error("Expected wrapping nil to return nil")
	}
}

func TestErrorWithSuggestion(t *testing.T) {
	err := New(CategoryParse, CodeInvalidDate, "bad date").
		WithSuggestion("use YYYY-MM-DD")

	expected := "bad date (suggestion: use YYYY-MM-DD)"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryParse, CodeInvalidAmount, "bad amount").
		WithContext("field", "amount.grand_total").
		WithContext("value", "abc")

	if err.Context["field"] != "amount.grand_total" {
		t.Errorf("Expected field context to be set, got %v", err.Context["field"])
	}

	if err.Context["value"] != "abc" {
		t.Errorf("Expected value context to be set, got %v", err.Context["value"])
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
		{CategoryStore, 6},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.GetExitCode(); got != tt.expected {
			t.Errorf("Category %s: expected exit code %d, got %d", tt.category, tt.expected, got)
		}
	}
}

func TestParseErrorConstructor(t *testing.T) {
	err := ParseError(CodeInvalidDate, "created_at", "not-a-date", nil)

	if err.Category != CategoryParse {
		t.Errorf("Expected parse category, got %s", err.Category)
	}

	if err.Context["field"] != "created_at" {
		t.Errorf("Expected field context, got %v", err.Context["field"])
	}

	if err.Suggestion == "" {
		t.Error("Expected a suggestion to be set")
	}
}

func TestStoreErrorConstructor(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := StoreError(CodeConnectionFailed, "postgres", cause)

	if err.Category != CategoryStore {
		t.Errorf("Expected store category, got %s", err.Category)
	}

	if err.Cause != cause {
		t.Error("Expected cause to be preserved")
	}
}

func TestAsReconcilerError(t *testing.T) {
	inner := New(CategoryValidation, CodeEmptyInput, "empty")
	wrapped := fmt.Errorf("handler: %w", inner)

	got, ok := AsReconcilerError(wrapped)
	if !ok {
		t.Fatal("Expected to extract ReconcilerError from chain")
	}

	if got.Code != CodeEmptyInput {
		t.Errorf("Expected code %s, got %s", CodeEmptyInput, got.Code)
	}

	if _, ok := AsReconcilerError(fmt.Errorf("plain")); ok {
		t.Error("Expected plain error to not be a ReconcilerError")
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*ReconcilerError{
		New(CategoryParse, CodeInvalidDate, "bad date"),
		New(CategoryParse, CodeInvalidAmount, "bad amount"),
		New(CategoryStore, CodeQueryFailed, "query failed"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("Expected 3 errors, got %d", summary.Total)
	}

	if summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("Expected 2 parse errors, got %d", summary.ByCategory[CategoryParse])
	}

	if !summary.HasCategory(CategoryStore) {
		t.Error("Expected summary to report store category")
	}

	// Store has the highest exit code of the three
	if summary.GetExitCode() != 6 {
		t.Errorf("Expected exit code 6, got %d", summary.GetExitCode())
	}
}
