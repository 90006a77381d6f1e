package staff

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"educbt.org/internal/apperr"
	"educbt.org/internal/obs"
	"educbt.org/internal/paging"
)

// Validate rejects periods outside a sane calendar range.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	}
	if p.Year < 2000 || p.Year > 9999 {
		return fmt.Errorf("%w: year is out of range", ErrInvalidInput)
	}
	return nil
}

// Compute prices every member with the same flat adjustments:
// net = salary + allowances - deductions.
func Compute(members []Member, allowances, deductions []Adjustment) ([]PayrollItem, Totals) {
	plus := lo.SumBy(allowances, func(a Adjustment) int64 { return a.Amount })
	minus := lo.SumBy(deductions, func(a Adjustment) int64 { return a.Amount })

	items := lo.Map(members, func(m Member, _ int) PayrollItem {
		return PayrollItem{
			StaffID:    m.ID,
			Name:       m.Name,
			Gross:      m.Salary,
			Allowances: plus,
			Deductions: minus,
			Net:        m.Salary + plus - minus,
		}
	})
	var totals Totals
	for _, it := range items {
		totals.Gross += it.Gross
		totals.Allowances += it.Allowances
		totals.Deductions += it.Deductions
		totals.Net += it.Net
	}
	return items, totals
}

func (s *Service) compute(ctx context.Context, store Store, orgID int64, p Period) (Payroll, error) {
	members, err := store.AllMembers(ctx, orgID)
	if err != nil {
		return Payroll{}, err
	}
	allowances, err := store.Adjustments(ctx, Allowance)
	if err != nil {
		return Payroll{}, err
	}
	deductions, err := store.Adjustments(ctx, Deduction)
	if err != nil {
		return Payroll{}, err
	}
	items, totals := Compute(members, allowances, deductions)
	if items == nil {
		items = []PayrollItem{}
	}
	return Payroll{Year: p.Year, Month: p.Month, Items: items, Totals: totals}, nil
}

// Preview computes the payroll for a period without persisting it.
func (s *Service) Preview(ctx context.Context, orgID int64, p Period) (Payroll, error) {
	if err := p.Validate(); err != nil {
		return Payroll{}, err
	}
	return s.compute(ctx, s.store, orgID, p)
}

// Run computes and stores the payroll for a period in one transaction.
func (s *Service) Run(ctx context.Context, orgID int64, p Period) (Payroll, error) {
	if err := p.Validate(); err != nil {
		return Payroll{}, err
	}
	var out Payroll
	err := s.store.WithinTx(ctx, func(tx Store) error {
		runID, err := tx.CreateRun(ctx, orgID, p)
		if err != nil {
			return err
		}
		payroll, err := s.compute(ctx, tx, orgID, p)
		if err != nil {
			return err
		}
		for _, item := range payroll.Items {
			item.RunID = runID
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		payroll.ID = runID
		out = payroll
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return Payroll{}, apperr.Wrap(err, http.StatusBadRequest, "Payroll for this period already exists")
	}
	if err != nil {
		return Payroll{}, err
	}
	obs.Logger().Info("payroll run stored",
		"organization_id", orgID,
		"period", fmt.Sprintf("%04d-%02d", p.Year, p.Month),
		"staff", len(out.Items),
		"net", humanize.Comma(out.Totals.Net))
	return out, nil
}

func (s *Service) Runs(ctx context.Context, orgID int64, p paging.Params) (paging.Page[Run], error) {
	runs, total, err := s.store.Runs(ctx, orgID, p)
	if err != nil {
		return paging.Page[Run]{}, err
	}
	return paging.New(runs, total, p), nil
}

// Summary reports monthly totals for a year; months without a run are
// omitted.
func (s *Service) Summary(ctx context.Context, orgID int64, year int) ([]MonthSummary, error) {
	if err := (Period{Year: year, Month: 1}).Validate(); err != nil {
		return nil, err
	}
	return nonNil(s.store.Summary(ctx, orgID, year))
}
