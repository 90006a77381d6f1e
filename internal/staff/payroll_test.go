package staff

import (
	"errors"
	"testing"
)

func TestComputeNetPay(t *testing.T) {
	members := []Member{{ID: 1, Name: "Ana", Salary: 5_000_000}, {ID: 2, Name: "Budi", Salary: 7_500_000}}
	allowances := []Adjustment{{Title: "Transport", Amount: 250_000}, {Title: "Meal", Amount: 500_000}}
	deductions := []Adjustment{{Title: "Insurance", Amount: 150_000}}

	items, totals := Compute(members, allowances, deductions)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Net != 5_600_000 || items[1].Net != 8_100_000 {
		t.Fatalf("unexpected net pay: %+v", items)
	}
	if totals.Gross != 12_500_000 || totals.Allowances != 1_500_000 || totals.Deductions != 300_000 || totals.Net != 13_700_000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestComputeWithoutStaff(t *testing.T) {
	items, totals := Compute(nil, []Adjustment{{Amount: 10}}, nil)
	if len(items) != 0 || totals != (Totals{}) {
		t.Fatalf("expected empty payroll, got %+v %+v", items, totals)
	}
}

func TestPeriodValidate(t *testing.T) {
	for _, p := range []Period{{2024, 0}, {2024, 13}, {1999, 5}} {
		if err := p.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected invalid input, got %v", p, err)
		}
	}
	if err := (Period{2024, 12}).Validate(); err != nil {
		t.Fatalf("valid period rejected: %v", err)
	}
}
