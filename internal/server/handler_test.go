package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

type fakeSearcher struct {
	invoiceNumbers []string
	externalIDs    []string
	results        []json.RawMessage
	err            error
}

func (f *fakeSearcher) Search(_ context.Context, invoiceNumbers, externalIDs []string) ([]json.RawMessage, error) {
	f.invoiceNumbers = invoiceNumbers
	f.externalIDs = externalIDs
	return f.results, f.err
}

func TestSplitIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"commas", "A,B,C", []string{"A", "B", "C"}},
		{"mixed separators", "A, B;C D", []string{"A", "B", "C", "D"}},
		{"duplicates removed", "A,B,A", []string{"A", "B"}},
		{"blank entries dropped", "A,,  ,B", []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIdentifiers(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestHandleSearchSuccess(t *testing.T) {
	searcher := &fakeSearcher{
		results: []json.RawMessage{json.RawMessage(`{"status":"exactly match"}`)},
	}
	handler := NewHandler(searcher)

	req := httptest.NewRequest(http.MethodGet, "/search?input_string=PAY-1%3BPAY-2&input_invoice=INV-1", nil)
	rec := httptest.NewRecorder()

	handler.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}

	if resp.Status != "success" {
		t.Errorf("Expected status 'success', got '%s'", resp.Status)
	}

	if !reflect.DeepEqual(resp.ExternalIDs, []string{"PAY-1", "PAY-2"}) {
		t.Errorf("Unexpected external ids: %v", resp.ExternalIDs)
	}

	if len(resp.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(resp.Results))
	}

	if !reflect.DeepEqual(searcher.invoiceNumbers, []string{"INV-1"}) {
		t.Errorf("Unexpected invoice numbers passed to searcher: %v", searcher.invoiceNumbers)
	}
}

func TestHandleSearchBothInputsEmpty(t *testing.T) {
	handler := NewHandler(&fakeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec := httptest.NewRecorder()

	handler.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}

	if resp.Status != "error" {
		t.Errorf("Expected status 'error', got '%s'", resp.Status)
	}
}

func TestHandleSearchEmptyResults(t *testing.T) {
	handler := NewHandler(&fakeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/search?input_invoice=INV-404", nil)
	rec := httptest.NewRecorder()

	handler.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !json.Valid([]byte(body)) {
		t.Fatalf("Expected valid JSON body, got %s", body)
	}

	var resp SearchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}

	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("Expected empty results list, got %v", resp.Results)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := NewHandler(&fakeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
}
