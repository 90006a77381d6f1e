package staff_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educbt.org/internal/apperr"
	"educbt.org/internal/paging"
	"educbt.org/internal/staff"
	"educbt.org/internal/store/memory"
)

func setup(t *testing.T) (*staff.Service, int64, int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	org, err := store.Organizations().Default(ctx)
	require.NoError(t, err)
	other, err := store.Organizations().Create(ctx, "Acme", false)
	require.NoError(t, err)
	return staff.NewService(store.Staff()), org.ID, other.ID
}

func TestJobTitleCarriesLevel(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	level, err := svc.CreateJobLevel(ctx, "Senior")
	require.NoError(t, err)
	title, err := svc.CreateJobTitle(ctx, staff.JobTitleInput{Title: "Teacher", LevelID: &level.ID})
	require.NoError(t, err)
	assert.Equal(t, "Senior", title.Level)

	_, err = svc.CreateJobTitle(ctx, staff.JobTitleInput{Title: "Ghost", LevelID: lo.ToPtr(int64(999))})
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	require.NoError(t, svc.DeleteJobLevel(ctx, level.ID))
	titles, err := svc.JobTitles(ctx)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Nil(t, titles[0].LevelID)

	_, err = svc.CreateJobLevel(ctx, "  ")
	assert.ErrorIs(t, err, staff.ErrInvalidInput)
}

func TestAdjustmentsAreSeparatedByKind(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateAdjustment(ctx, staff.Allowance, staff.AdjustmentInput{Title: "Meal", Amount: 100})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, staff.Deduction, staff.AdjustmentInput{Title: "Tax", Amount: 40})
	require.NoError(t, err)

	allowances, err := svc.Adjustments(ctx, staff.Allowance)
	require.NoError(t, err)
	assert.Equal(t, []string{"Meal"}, lo.Map(allowances, func(a staff.Adjustment, _ int) string { return a.Title }))

	_, err = svc.UpdateAdjustment(ctx, staff.Deduction, a.ID, staff.AdjustmentInput{Title: "Meal", Amount: 1})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Deduction not found", e.Message)

	_, err = svc.CreateAdjustment(ctx, staff.Allowance, staff.AdjustmentInput{Title: "Bad", Amount: -1})
	assert.ErrorIs(t, err, staff.ErrInvalidInput)
}

func TestStaffScopedToOrganization(t *testing.T) {
	svc, org, other := setup(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, org, staff.MemberInput{Name: "Ana", Email: "Ana@Example.com", Salary: 1000})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", m.Email)
	_, err = svc.Create(ctx, other, staff.MemberInput{Name: "Budi", Email: "budi@example.com", Salary: 1000})
	require.NoError(t, err)

	page, err := svc.List(ctx, org, paging.Params{Page: 1, Size: 10}, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	_, err = svc.Get(ctx, other, m.ID)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	updated, err := svc.Update(ctx, org, m.ID, staff.MemberPatch{Salary: lo.ToPtr(int64(2000))})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), updated.Salary)
	assert.Equal(t, "Ana", updated.Name)

	_, err = svc.Create(ctx, org, staff.MemberInput{Name: "X", Email: "not-an-email"})
	assert.ErrorIs(t, err, staff.ErrInvalidInput)

	require.NoError(t, svc.Delete(ctx, org, m.ID))
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(svc.Delete(ctx, org, m.ID)))
}

func TestPayrollRunIsOncePerPeriod(t *testing.T) {
	svc, org, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, org, staff.MemberInput{Name: "Ana", Email: "ana@example.com", Salary: 1000})
	require.NoError(t, err)
	_, err = svc.Create(ctx, org, staff.MemberInput{Name: "Budi", Email: "budi@example.com", Salary: 2000})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, staff.Allowance, staff.AdjustmentInput{Title: "Meal", Amount: 300})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, staff.Deduction, staff.AdjustmentInput{Title: "Tax", Amount: 100})
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, org, staff.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3400), preview.Totals.Net)
	assert.Zero(t, preview.ID)

	run, err := svc.Run(ctx, org, staff.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.NotZero(t, run.ID)
	assert.Equal(t, preview.Totals, run.Totals)

	_, err = svc.Run(ctx, org, staff.Period{Year: 2024, Month: 3})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "Payroll for this period already exists", e.Message)

	_, err = svc.Run(ctx, org, staff.Period{Year: 2024, Month: 5})
	require.NoError(t, err)

	runs, err := svc.Runs(ctx, org, paging.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Equal(t, 2, runs.TotalCount)
	assert.Equal(t, 5, runs.Data[0].Month)
	assert.Equal(t, 2, runs.Data[0].StaffCount)

	summary, err := svc.Summary(ctx, org, 2024)
	require.NoError(t, err)
	assert.Equal(t, []staff.MonthSummary{
		{Month: 3, Gross: 3000, Net: 3400, Deductions: 200},
		{Month: 5, Gross: 3000, Net: 3400, Deductions: 200},
	}, summary)

	empty, err := svc.Summary(ctx, org, 2023)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}
