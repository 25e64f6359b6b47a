package controller

import (
	"testing"

	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

func TestDecimalToMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10.50", 1050, false},
		{"0.01", 1, false},
		{"100", 10000, false},
		{"99.9", 9990, false},
		{"10.505", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := decimalToMinor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMinorToDecimalString(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{1050, "10.50"},
		{1, "0.01"},
		{10000, "100.00"},
		{9990, "99.90"},
	}
	for _, tt := range tests {
		if got := minorToDecimalString(tt.in); got != tt.want {
			t.Errorf("%d: got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFromTransaction(t *testing.T) {
	txn, err := transaction.New(uuid.New(), transaction.Amount{MinorUnits: 1050, Currency: "USD"}, uuid.New())
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	txn.MarkProcessing()
	txn.MarkSuccessful("stripe_ch_1")

	resp := FromTransaction(txn)

	if resp.Amount != "10.50" {
		t.Errorf("expected amount 10.50, got %s", resp.Amount)
	}
	if resp.Currency != "USD" {
		t.Errorf("unexpected currency %s", resp.Currency)
	}
	if resp.Status != string(transaction.StatusSuccessful) {
		t.Errorf("unexpected status %s", resp.Status)
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	if got := parseUUID(id.String()); got == nil || *got != id {
		t.Error("valid uuid must parse")
	}
	if parseUUID("") != nil {
		t.Error("empty string must be nil")
	}
	if parseUUID("nope") != nil {
		t.Error("garbage must be nil")
	}
}
