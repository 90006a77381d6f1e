package pg

import (
	"context"
	"fmt"

	"educbt.org/internal/paging"
	"educbt.org/internal/staff"
)

// Staff returns the staff and payroll store bound to the same handle.
func (s *Store) Staff() staff.Store { return staffStore{s} }

type staffStore struct{ s *Store }

func staffErr(err error) error { return translate(err, staff.ErrNotFound, staff.ErrConflict) }

// adjustmentTables whitelists the tables behind staff.Kind.
var adjustmentTables = map[staff.Kind]string{
	staff.Allowance: "allowances",
	staff.Deduction: "deductions",
}

func adjustmentTable(kind staff.Kind) (string, error) {
	table, ok := adjustmentTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown adjustment kind %q", staff.ErrInvalidInput, kind)
	}
	return table, nil
}

func (st staffStore) WithinTx(ctx context.Context, fn func(staff.Store) error) error {
	return st.s.inTx(ctx, func(tx *Store) error { return fn(staffStore{tx}) })
}

func (st staffStore) JobLevels(ctx context.Context) ([]staff.JobLevel, error) {
	var out []staff.JobLevel
	err := st.s.q.SelectContext(ctx, &out, `select id, name from job_levels order by id`)
	return out, err
}

func (st staffStore) CreateJobLevel(ctx context.Context, name string) (staff.JobLevel, error) {
	var out staff.JobLevel
	err := st.s.q.GetContext(ctx, &out, `insert into job_levels (name) values ($1) returning id, name`, name)
	return out, staffErr(err)
}

func (st staffStore) DeleteJobLevel(ctx context.Context, id int64) error {
	return st.deleteByID(ctx, "job_levels", id)
}

func (st staffStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := st.s.q.ExecContext(ctx, `delete from `+table+` where id = $1`, id)
	if err != nil {
		return staffErr(err)
	}
	return affected(res, staff.ErrNotFound)
}

const jobTitleSelect = `
	select t.id, t.title, t.level_id, coalesce(l.name, '') as level
	from job_titles t
	left join job_levels l on l.id = t.level_id`

func (st staffStore) JobTitles(ctx context.Context) ([]staff.JobTitle, error) {
	var out []staff.JobTitle
	err := st.s.q.SelectContext(ctx, &out, jobTitleSelect+` order by t.id`)
	return out, err
}

func (st staffStore) jobTitle(ctx context.Context, id int64) (staff.JobTitle, error) {
	var out staff.JobTitle
	err := st.s.q.GetContext(ctx, &out, jobTitleSelect+` where t.id = $1`, id)
	return out, staffErr(err)
}

func (st staffStore) CreateJobTitle(ctx context.Context, in staff.JobTitleInput) (staff.JobTitle, error) {
	var id int64
	err := st.s.q.GetContext(ctx, &id, `
		insert into job_titles (title, level_id) values ($1, $2) returning id
	`, in.Title, in.LevelID)
	if err != nil {
		return staff.JobTitle{}, staffErr(err)
	}
	return st.jobTitle(ctx, id)
}

func (st staffStore) UpdateJobTitle(ctx context.Context, id int64, in staff.JobTitleInput) (staff.JobTitle, error) {
	res, err := st.s.q.ExecContext(ctx, `
		update job_titles set title = $2, level_id = $3 where id = $1
	`, id, in.Title, in.LevelID)
	if err != nil {
		return staff.JobTitle{}, staffErr(err)
	}
	if err := affected(res, staff.ErrNotFound); err != nil {
		return staff.JobTitle{}, err
	}
	return st.jobTitle(ctx, id)
}

func (st staffStore) DeleteJobTitle(ctx context.Context, id int64) error {
	return st.deleteByID(ctx, "job_titles", id)
}

func (st staffStore) Adjustments(ctx context.Context, kind staff.Kind) ([]staff.Adjustment, error) {
	table, err := adjustmentTable(kind)
	if err != nil {
		return nil, err
	}
	var out []staff.Adjustment
	err = st.s.q.SelectContext(ctx, &out, `select id, title, amount from `+table+` order by id`)
	return out, err
}

func (st staffStore) CreateAdjustment(ctx context.Context, kind staff.Kind, in staff.AdjustmentInput) (staff.Adjustment, error) {
	table, err := adjustmentTable(kind)
	if err != nil {
		return staff.Adjustment{}, err
	}
	var out staff.Adjustment
	err = st.s.q.GetContext(ctx, &out, `
		insert into `+table+` (title, amount) values ($1, $2) returning id, title, amount
	`, in.Title, in.Amount)
	return out, staffErr(err)
}

func (st staffStore) UpdateAdjustment(ctx context.Context, kind staff.Kind, id int64, in staff.AdjustmentInput) (staff.Adjustment, error) {
	table, err := adjustmentTable(kind)
	if err != nil {
		return staff.Adjustment{}, err
	}
	var out staff.Adjustment
	err = st.s.q.GetContext(ctx, &out, `
		update `+table+` set title = $2, amount = $3 where id = $1 returning id, title, amount
	`, id, in.Title, in.Amount)
	return out, staffErr(err)
}

func (st staffStore) DeleteAdjustment(ctx context.Context, kind staff.Kind, id int64) error {
	table, err := adjustmentTable(kind)
	if err != nil {
		return err
	}
	return st.deleteByID(ctx, table, id)
}

const memberSelect = `
	select s.id, s.organization_id, s.name, s.email, s.personal_email, s.job_title_id,
		coalesce(t.title, '') as job_title, s.salary, s.identity_card, s.created_at
	from staff s
	left join job_titles t on t.id = s.job_title_id`

func (st staffStore) ListMembers(ctx context.Context, orgID int64, p paging.Params, search string) ([]staff.Member, int, error) {
	pattern := likePattern(search)
	var total int
	if err := st.s.q.GetContext(ctx, &total, `
		select count(*) from staff s
		where s.organization_id = $1 and ($2 = '' or s.name ilike $2 or s.email ilike $2)
	`, orgID, pattern); err != nil {
		return nil, 0, err
	}
	var out []staff.Member
	err := st.s.q.SelectContext(ctx, &out, memberSelect+`
		where s.organization_id = $1 and ($2 = '' or s.name ilike $2 or s.email ilike $2)
		order by s.id
		limit $3 offset $4
	`, orgID, pattern, p.Limit(), p.Offset())
	return out, total, err
}

func (st staffStore) AllMembers(ctx context.Context, orgID int64) ([]staff.Member, error) {
	var out []staff.Member
	err := st.s.q.SelectContext(ctx, &out, memberSelect+` where s.organization_id = $1 order by s.id`, orgID)
	return out, err
}

func (st staffStore) GetMember(ctx context.Context, orgID, id int64) (staff.Member, error) {
	var out staff.Member
	err := st.s.q.GetContext(ctx, &out, memberSelect+` where s.organization_id = $1 and s.id = $2`, orgID, id)
	return out, staffErr(err)
}

func (st staffStore) CreateMember(ctx context.Context, orgID int64, in staff.MemberInput) (staff.Member, error) {
	var id int64
	err := st.s.q.GetContext(ctx, &id, `
		insert into staff (organization_id, name, email, personal_email, job_title_id, salary, identity_card)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, orgID, in.Name, in.Email, in.PersonalEmail, in.JobTitleID, in.Salary, in.IdentityCard)
	if err != nil {
		return staff.Member{}, staffErr(err)
	}
	return st.GetMember(ctx, orgID, id)
}

func (st staffStore) UpdateMember(ctx context.Context, orgID, id int64, p staff.MemberPatch) (staff.Member, error) {
	res, err := st.s.q.ExecContext(ctx, `
		update staff set
			name = coalesce($3, name),
			email = coalesce($4, email),
			personal_email = coalesce($5, personal_email),
			job_title_id = coalesce($6, job_title_id),
			salary = coalesce($7, salary),
			identity_card = coalesce($8, identity_card)
		where organization_id = $1 and id = $2
	`, orgID, id, p.Name, p.Email, p.PersonalEmail, p.JobTitleID, p.Salary, p.IdentityCard)
	if err != nil {
		return staff.Member{}, staffErr(err)
	}
	if err := affected(res, staff.ErrNotFound); err != nil {
		return staff.Member{}, err
	}
	return st.GetMember(ctx, orgID, id)
}

func (st staffStore) DeleteMember(ctx context.Context, orgID, id int64) error {
	res, err := st.s.q.ExecContext(ctx, `delete from staff where organization_id = $1 and id = $2`, orgID, id)
	if err != nil {
		return err
	}
	return affected(res, staff.ErrNotFound)
}

func (st staffStore) CreateRun(ctx context.Context, orgID int64, p staff.Period) (int64, error) {
	var id int64
	err := st.s.q.GetContext(ctx, &id, `
		insert into payroll_runs (organization_id, period_year, period_month)
		values ($1, $2, $3)
		returning id
	`, orgID, p.Year, p.Month)
	return id, staffErr(err)
}

func (st staffStore) InsertItem(ctx context.Context, item staff.PayrollItem) error {
	_, err := st.s.q.ExecContext(ctx, `
		insert into payroll_items (run_id, staff_id, gross, allowances, deductions, net)
		values ($1, $2, $3, $4, $5, $6)
	`, item.RunID, item.StaffID, item.Gross, item.Allowances, item.Deductions, item.Net)
	return staffErr(err)
}

func (st staffStore) Runs(ctx context.Context, orgID int64, p paging.Params) ([]staff.Run, int, error) {
	var total int
	if err := st.s.q.GetContext(ctx, &total, `select count(*) from payroll_runs where organization_id = $1`, orgID); err != nil {
		return nil, 0, err
	}
	var out []staff.Run
	err := st.s.q.SelectContext(ctx, &out, `
		select r.id, r.period_year, r.period_month, r.created_at,
			count(i.staff_id) as staff_count,
			coalesce(sum(i.gross), 0) as gross,
			coalesce(sum(i.allowances), 0) as allowances,
			coalesce(sum(i.deductions), 0) as deductions,
			coalesce(sum(i.net), 0) as net
		from payroll_runs r
		left join payroll_items i on i.run_id = r.id
		where r.organization_id = $1
		group by r.id
		order by r.period_year desc, r.period_month desc
		limit $2 offset $3
	`, orgID, p.Limit(), p.Offset())
	return out, total, err
}

func (st staffStore) Summary(ctx context.Context, orgID int64, year int) ([]staff.MonthSummary, error) {
	var out []staff.MonthSummary
	err := st.s.q.SelectContext(ctx, &out, `
		select r.period_month as month,
			coalesce(sum(i.gross), 0) as gross,
			coalesce(sum(i.net), 0) as net,
			coalesce(sum(i.deductions), 0) as deductions
		from payroll_runs r
		left join payroll_items i on i.run_id = r.id
		where r.organization_id = $1 and r.period_year = $2
		group by r.period_month
		order by r.period_month
	`, orgID, year)
	return out, err
}
