package memory

import (
	"context"
	"maps"
	"sort"

	"educbt.org/internal/paging"
	"educbt.org/internal/staff"
)

type staffData struct {
	levels     map[int64]staff.JobLevel
	titles     map[int64]staff.JobTitle
	adjust     map[staff.Kind]map[int64]staff.Adjustment
	members    map[int64]staff.Member
	runs       map[int64]staff.Run
	runOrg     map[int64]int64
	runPeriods map[runKey]int64
	items      map[pair]staff.PayrollItem // run, staff
}

type runKey struct {
	org   int64
	year  int
	month int
}

func newStaffData() staffData {
	return staffData{
		levels: map[int64]staff.JobLevel{},
		titles: map[int64]staff.JobTitle{},
		adjust: map[staff.Kind]map[int64]staff.Adjustment{
			staff.Allowance: {},
			staff.Deduction: {},
		},
		members:    map[int64]staff.Member{},
		runs:       map[int64]staff.Run{},
		runOrg:     map[int64]int64{},
		runPeriods: map[runKey]int64{},
		items:      map[pair]staff.PayrollItem{},
	}
}

func (d staffData) clone() staffData {
	cp := staffData{
		levels:     maps.Clone(d.levels),
		titles:     maps.Clone(d.titles),
		adjust:     map[staff.Kind]map[int64]staff.Adjustment{},
		members:    maps.Clone(d.members),
		runs:       maps.Clone(d.runs),
		runOrg:     maps.Clone(d.runOrg),
		runPeriods: maps.Clone(d.runPeriods),
		items:      maps.Clone(d.items),
	}
	for k, v := range d.adjust {
		cp.adjust[k] = maps.Clone(v)
	}
	return cp
}

// Staff returns the staff and payroll store view.
func (s *Store) Staff() staff.Store { return staffStore{s} }

type staffStore struct{ s *Store }

var _ staff.Store = staffStore{}

func (st staffStore) data() *staffData { return &st.s.d.staff }

func (st staffStore) JobLevels(_ context.Context) ([]staff.JobLevel, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return sortedValues(st.data().levels, func(v staff.JobLevel) int64 { return v.ID }), nil
}

func (st staffStore) CreateJobLevel(_ context.Context, name string) (staff.JobLevel, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	l := staff.JobLevel{ID: st.s.id(), Name: name}
	st.data().levels[l.ID] = l
	return l, nil
}

func (st staffStore) DeleteJobLevel(_ context.Context, id int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	if _, ok := d.levels[id]; !ok {
		return staff.ErrNotFound
	}
	delete(d.levels, id)
	for tid, t := range d.titles {
		if t.LevelID != nil && *t.LevelID == id {
			t.LevelID, t.Level = nil, ""
			d.titles[tid] = t
		}
	}
	return nil
}

func (st staffStore) JobTitles(_ context.Context) ([]staff.JobTitle, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return sortedValues(st.data().titles, func(v staff.JobTitle) int64 { return v.ID }), nil
}

func (st staffStore) fillTitle(t staff.JobTitle) (staff.JobTitle, error) {
	t.Level = ""
	if t.LevelID != nil {
		l, ok := st.data().levels[*t.LevelID]
		if !ok {
			return staff.JobTitle{}, staff.ErrNotFound
		}
		t.Level = l.Name
	}
	return t, nil
}

func (st staffStore) CreateJobTitle(_ context.Context, in staff.JobTitleInput) (staff.JobTitle, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	t, err := st.fillTitle(staff.JobTitle{Title: in.Title, LevelID: in.LevelID})
	if err != nil {
		return staff.JobTitle{}, err
	}
	t.ID = st.s.id()
	st.data().titles[t.ID] = t
	return t, nil
}

func (st staffStore) UpdateJobTitle(_ context.Context, id int64, in staff.JobTitleInput) (staff.JobTitle, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, ok := st.data().titles[id]; !ok {
		return staff.JobTitle{}, staff.ErrNotFound
	}
	t, err := st.fillTitle(staff.JobTitle{ID: id, Title: in.Title, LevelID: in.LevelID})
	if err != nil {
		return staff.JobTitle{}, err
	}
	st.data().titles[id] = t
	return t, nil
}

func (st staffStore) DeleteJobTitle(_ context.Context, id int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	if _, ok := d.titles[id]; !ok {
		return staff.ErrNotFound
	}
	delete(d.titles, id)
	for mid, m := range d.members {
		if m.JobTitleID != nil && *m.JobTitleID == id {
			m.JobTitleID, m.JobTitle = nil, ""
			d.members[mid] = m
		}
	}
	return nil
}

func (st staffStore) Adjustments(_ context.Context, kind staff.Kind) ([]staff.Adjustment, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return sortedValues(st.data().adjust[kind], func(v staff.Adjustment) int64 { return v.ID }), nil
}

func (st staffStore) CreateAdjustment(_ context.Context, kind staff.Kind, in staff.AdjustmentInput) (staff.Adjustment, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	a := staff.Adjustment{ID: st.s.id(), Title: in.Title, Amount: in.Amount}
	st.data().adjust[kind][a.ID] = a
	return a, nil
}

func (st staffStore) UpdateAdjustment(_ context.Context, kind staff.Kind, id int64, in staff.AdjustmentInput) (staff.Adjustment, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, ok := st.data().adjust[kind][id]; !ok {
		return staff.Adjustment{}, staff.ErrNotFound
	}
	a := staff.Adjustment{ID: id, Title: in.Title, Amount: in.Amount}
	st.data().adjust[kind][id] = a
	return a, nil
}

func (st staffStore) DeleteAdjustment(_ context.Context, kind staff.Kind, id int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, ok := st.data().adjust[kind][id]; !ok {
		return staff.ErrNotFound
	}
	delete(st.data().adjust[kind], id)
	return nil
}

func (st staffStore) orgMembers(orgID int64) []staff.Member {
	var out []staff.Member
	for _, m := range sortedValues(st.data().members, func(v staff.Member) int64 { return v.ID }) {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out
}

func (st staffStore) ListMembers(_ context.Context, orgID int64, p paging.Params, search string) ([]staff.Member, int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var matched []staff.Member
	for _, m := range st.orgMembers(orgID) {
		if search != "" && !contains(m.Name, search) && !contains(m.Email, search) {
			continue
		}
		matched = append(matched, m)
	}
	return window(matched, p), len(matched), nil
}

func (st staffStore) AllMembers(_ context.Context, orgID int64) ([]staff.Member, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.orgMembers(orgID), nil
}

func (st staffStore) GetMember(_ context.Context, orgID, id int64) (staff.Member, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	m, ok := st.data().members[id]
	if !ok || m.OrganizationID != orgID {
		return staff.Member{}, staff.ErrNotFound
	}
	return m, nil
}

func (st staffStore) jobTitle(id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	t, ok := st.data().titles[*id]
	if !ok {
		return "", staff.ErrNotFound
	}
	return t.Title, nil
}

func (st staffStore) CreateMember(_ context.Context, orgID int64, in staff.MemberInput) (staff.Member, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, ok := st.s.d.orgs[orgID]; !ok {
		return staff.Member{}, staff.ErrNotFound
	}
	title, err := st.jobTitle(in.JobTitleID)
	if err != nil {
		return staff.Member{}, err
	}
	m := staff.Member{
		ID:             st.s.id(),
		OrganizationID: orgID,
		Name:           in.Name,
		Email:          in.Email,
		PersonalEmail:  in.PersonalEmail,
		JobTitleID:     in.JobTitleID,
		JobTitle:       title,
		Salary:         in.Salary,
		IdentityCard:   in.IdentityCard,
		CreatedAt:      st.s.now().UTC(),
	}
	st.data().members[m.ID] = m
	return m, nil
}

func (st staffStore) UpdateMember(_ context.Context, orgID, id int64, p staff.MemberPatch) (staff.Member, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	m, ok := st.data().members[id]
	if !ok || m.OrganizationID != orgID {
		return staff.Member{}, staff.ErrNotFound
	}
	if p.JobTitleID != nil {
		title, err := st.jobTitle(p.JobTitleID)
		if err != nil {
			return staff.Member{}, err
		}
		m.JobTitleID, m.JobTitle = p.JobTitleID, title
	}
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.PersonalEmail != nil {
		m.PersonalEmail = p.PersonalEmail
	}
	if p.Salary != nil {
		m.Salary = *p.Salary
	}
	if p.IdentityCard != nil {
		m.IdentityCard = p.IdentityCard
	}
	st.data().members[id] = m
	return m, nil
}

func (st staffStore) DeleteMember(_ context.Context, orgID, id int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	m, ok := st.data().members[id]
	if !ok || m.OrganizationID != orgID {
		return staff.ErrNotFound
	}
	delete(st.data().members, id)
	for k := range st.data().items {
		if k[1] == id {
			delete(st.data().items, k)
		}
	}
	return nil
}

func (st staffStore) CreateRun(_ context.Context, orgID int64, p staff.Period) (int64, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	key := runKey{orgID, p.Year, p.Month}
	if _, ok := d.runPeriods[key]; ok {
		return 0, staff.ErrConflict
	}
	run := staff.Run{ID: st.s.id(), Year: p.Year, Month: p.Month, CreatedAt: st.s.now().UTC()}
	d.runs[run.ID] = run
	d.runOrg[run.ID] = orgID
	d.runPeriods[key] = run.ID
	return run.ID, nil
}

func (st staffStore) InsertItem(_ context.Context, item staff.PayrollItem) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	if _, ok := d.runs[item.RunID]; !ok {
		return staff.ErrNotFound
	}
	if _, ok := d.members[item.StaffID]; !ok {
		return staff.ErrNotFound
	}
	d.items[pair{item.RunID, item.StaffID}] = item
	return nil
}

func (st staffStore) runWithTotals(run staff.Run) staff.Run {
	for k, it := range st.data().items {
		if k[0] != run.ID {
			continue
		}
		run.StaffCount++
		run.Gross += it.Gross
		run.Allowances += it.Allowances
		run.Deductions += it.Deductions
		run.Net += it.Net
	}
	return run
}

func (st staffStore) Runs(_ context.Context, orgID int64, p paging.Params) ([]staff.Run, int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	var runs []staff.Run
	for id, run := range d.runs {
		if d.runOrg[id] == orgID {
			runs = append(runs, st.runWithTotals(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Year != runs[j].Year {
			return runs[i].Year > runs[j].Year
		}
		return runs[i].Month > runs[j].Month
	})
	return window(runs, p), len(runs), nil
}

func (st staffStore) Summary(_ context.Context, orgID int64, year int) ([]staff.MonthSummary, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	d := st.data()
	var out []staff.MonthSummary
	for id, run := range d.runs {
		if d.runOrg[id] != orgID || run.Year != year {
			continue
		}
		run = st.runWithTotals(run)
		out = append(out, staff.MonthSummary{Month: run.Month, Gross: run.Gross, Net: run.Net, Deductions: run.Deductions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (st staffStore) WithinTx(_ context.Context, fn func(staff.Store) error) error {
	return st.s.atomically(func() error { return fn(st) })
}
