package core

import (
	"testing"
	"time"
)

func TestAccountLinked(t *testing.T) {
	if (Account{Credential: ""}).Linked() {
		t.Fatal("empty credential should not be linked")
	}
	if (Account{Credential: "   "}).Linked() {
		t.Fatal("blank credential should not be linked")
	}
	if !(Account{Credential: "access-token-123"}).Linked() {
		t.Fatal("expected linked")
	}
}

func TestAccountDisplayName(t *testing.T) {
	a := Account{Name: "Checking", InstitutionName: "Chase Bank"}
	if got := a.DisplayName(); got != "Chase Bank - Checking" {
		t.Fatalf("got %q", got)
	}
	a.InstitutionName = ""
	if got := a.DisplayName(); got != "Checking" {
		t.Fatalf("got %q", got)
	}
}

func TestTransactionSign(t *testing.T) {
	exp := Transaction{Amount: Money{Cents: -5000}}
	if !exp.IsExpense() || exp.IsIncome() {
		t.Fatal("negative amount should be an expense")
	}
	inc := Transaction{Amount: Money{Cents: 300000}}
	if !inc.IsIncome() || inc.IsExpense() {
		t.Fatal("positive amount should be income")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ProviderTransactionID: "txn_1",
		Description:           "WHOLE FOODS",
		Date:                  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Description: "a", Date: good.Date},                         // missing provider id
		{ProviderTransactionID: "txn_2", Date: good.Date},           // empty description
		{ProviderTransactionID: "txn_3", Description: "a"},          // zero date
		{ProviderTransactionID: "  ", Description: "a", Date: good.Date}, // blank provider id
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryFullName(t *testing.T) {
	top := Category{Name: "Food & Dining"}
	if got := top.FullName(); got != "Food & Dining" {
		t.Fatalf("got %q", got)
	}
	child := Category{Name: "Groceries", ParentID: 1, ParentName: "Food & Dining"}
	if got := child.FullName(); got != "Food & Dining > Groceries" {
		t.Fatalf("got %q", got)
	}
}

func TestClassificationValidate(t *testing.T) {
	if err := (Classification{Confidence: 0.8}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Classification{Confidence: 1.1}).Validate(); err == nil {
		t.Fatal("expected error for confidence > 1")
	}
	if err := (Classification{Confidence: -0.1}).Validate(); err == nil {
		t.Fatal("expected error for negative confidence")
	}
}
