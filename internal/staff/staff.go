// Package staff keeps employee records, the company-wide pay components
// and monthly payroll runs.
package staff

import (
	"context"
	"errors"
	"time"

	"educbt.org/internal/paging"
)

var (
	ErrNotFound     = errors.New("staff: not found")
	ErrConflict     = errors.New("staff: already exists")
	ErrInvalidInput = errors.New("staff: invalid input")
)

type JobLevel struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type JobTitle struct {
	ID      int64  `db:"id" json:"id"`
	Title   string `db:"title" json:"title"`
	LevelID *int64 `db:"level_id" json:"levelId"`
	Level   string `db:"level" json:"level"`
}

type JobTitleInput struct {
	Title   string `json:"title"`
	LevelID *int64 `json:"levelId"`
}

// Kind selects the allowance or deduction table.
type Kind string

const (
	Allowance Kind = "allowance"
	Deduction Kind = "deduction"
)

// Adjustment is a flat monthly amount added to or taken from every salary.
// Amounts are in minor currency units.
type Adjustment struct {
	ID     int64  `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Amount int64  `db:"amount" json:"amount"`
}

type AdjustmentInput struct {
	Title  string `json:"title"`
	Amount int64  `json:"amount"`
}

type Member struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organizationId"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	PersonalEmail  *string   `db:"personal_email" json:"personalEmail"`
	JobTitleID     *int64    `db:"job_title_id" json:"jobTitleId"`
	JobTitle       string    `db:"job_title" json:"jobTitle"`
	Salary         int64     `db:"salary" json:"salary"`
	IdentityCard   *string   `db:"identity_card" json:"identityCard"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type MemberInput struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	PersonalEmail *string `json:"personalEmail"`
	JobTitleID    *int64  `json:"jobTitleId"`
	Salary        int64   `json:"salary"`
	IdentityCard  *string `json:"identityCard"`
}

// MemberPatch updates a staff record; nil fields are unchanged.
type MemberPatch struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	PersonalEmail *string `json:"personalEmail"`
	JobTitleID    *int64  `json:"jobTitleId"`
	Salary        *int64  `json:"salary"`
	IdentityCard  *string `json:"identityCard"`
}

type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type PayrollItem struct {
	RunID      int64  `db:"run_id" json:"-"`
	StaffID    int64  `db:"staff_id" json:"staffId"`
	Name       string `db:"name" json:"name"`
	Gross      int64  `db:"gross" json:"gross"`
	Allowances int64  `db:"allowances" json:"allowances"`
	Deductions int64  `db:"deductions" json:"deductions"`
	Net        int64  `db:"net" json:"net"`
}

// Totals sums a set of payroll items.
type Totals struct {
	Gross      int64 `db:"gross" json:"gross"`
	Allowances int64 `db:"allowances" json:"allowances"`
	Deductions int64 `db:"deductions" json:"deductions"`
	Net        int64 `db:"net" json:"net"`
}

// Payroll is a computed or persisted payroll for one period.
type Payroll struct {
	ID        int64         `json:"id,omitempty"`
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	Items     []PayrollItem `json:"items"`
	Totals    Totals        `json:"totals"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
}

// Run is a persisted payroll run with its totals.
type Run struct {
	ID         int64     `db:"id" json:"id"`
	Year       int       `db:"period_year" json:"year"`
	Month      int       `db:"period_month" json:"month"`
	StaffCount int       `db:"staff_count" json:"staffCount"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	Totals
}

type MonthSummary struct {
	Month      int   `db:"month" json:"month"`
	Gross      int64 `db:"gross" json:"gross"`
	Net        int64 `db:"net" json:"net"`
	Deductions int64 `db:"deductions" json:"deductions"`
}

// Store persists administration data, staff and payroll runs. Staff and
// payroll calls are scoped to an organization.
type Store interface {
	JobLevels(ctx context.Context) ([]JobLevel, error)
	CreateJobLevel(ctx context.Context, name string) (JobLevel, error)
	DeleteJobLevel(ctx context.Context, id int64) error

	JobTitles(ctx context.Context) ([]JobTitle, error)
	CreateJobTitle(ctx context.Context, in JobTitleInput) (JobTitle, error)
	UpdateJobTitle(ctx context.Context, id int64, in JobTitleInput) (JobTitle, error)
	DeleteJobTitle(ctx context.Context, id int64) error

	Adjustments(ctx context.Context, kind Kind) ([]Adjustment, error)
	CreateAdjustment(ctx context.Context, kind Kind, in AdjustmentInput) (Adjustment, error)
	UpdateAdjustment(ctx context.Context, kind Kind, id int64, in AdjustmentInput) (Adjustment, error)
	DeleteAdjustment(ctx context.Context, kind Kind, id int64) error

	ListMembers(ctx context.Context, orgID int64, p paging.Params, search string) ([]Member, int, error)
	AllMembers(ctx context.Context, orgID int64) ([]Member, error)
	GetMember(ctx context.Context, orgID, id int64) (Member, error)
	CreateMember(ctx context.Context, orgID int64, in MemberInput) (Member, error)
	UpdateMember(ctx context.Context, orgID, id int64, p MemberPatch) (Member, error)
	DeleteMember(ctx context.Context, orgID, id int64) error

	// CreateRun returns ErrConflict when the period already has a run.
	CreateRun(ctx context.Context, orgID int64, p Period) (int64, error)
	InsertItem(ctx context.Context, item PayrollItem) error
	Runs(ctx context.Context, orgID int64, p paging.Params) ([]Run, int, error)
	Summary(ctx context.Context, orgID int64, year int) ([]MonthSummary, error)

	WithinTx(ctx context.Context, fn func(Store) error) error
}
