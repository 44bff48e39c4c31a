package attendance

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/presenta/presenta/internal/holiday"
	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/shared"
)

// ProjectionPort is the read surface the projections are built on.
type ProjectionPort interface {
	GetEmployee(ctx context.Context, uid uuid.UUID) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetContractByPVID(ctx context.Context, pvid string) (Contract, error)
	ListContractsByDepartmentPrefix(ctx context.Context, prefix string, overlap interval.DateRange) ([]Contract, error)
	ListContractsActiveOn(ctx context.Context, day time.Time) ([]Contract, error)
	ListTimetables(ctx context.Context, contractID int64) ([]Timetable, error)
	ListPresenceRange(ctx context.Context, uid uuid.UUID, r interval.DateRange) ([]Presence, error)
	ListPresenceByDate(ctx context.Context, day time.Time) ([]Presence, error)
	ListPolicies(ctx context.Context) (map[string]Policy, error)
	DistinctDepartments(ctx context.Context) ([]string, error)
}

// Jitter supplies the cosmetic offsets applied to auto-filled presence:
// minutes to move arrival earlier and departure later.
type Jitter func() (earlier, later int)

// DefaultJitter spreads arrivals up to 22 minutes early and departures up
// to 7 minutes late.
func DefaultJitter() (int, int) {
	return rand.IntN(23), rand.IntN(8)
}

// DayEntry is one day of the monthly attendance view.
type DayEntry struct {
	Day       int                 `json:"day"`
	Date      time.Time           `json:"date"`
	Mode      *PresenceMode       `json:"mode"`
	Arrival   *interval.TimeOfDay `json:"arrival,omitempty"`
	Departure *interval.TimeOfDay `json:"departure,omitempty"`
	Timetable *interval.TimeRange `json:"timetable,omitempty"`
}

// GridRow is one employee-contract line of the department symbol grid.
// Cells holds one symbol per day of the month, index 0 being day 1.
type GridRow struct {
	EmployeeUID uuid.UUID
	Name        string
	PVID        string
	Cells       []string
}

// DeptRoster lists who is present in one department.
type DeptRoster struct {
	Department string   `json:"department"`
	Names      []string `json:"names"`
}

// Projector derives the reporting views from persisted engine state. It
// caches nothing: every request reads fresh.
type Projector struct {
	repo     ProjectionPort
	calendar holiday.Calendar
	jitter   Jitter
	collator *collate.Collator
	now      func() time.Time
	cfg      ServiceConfig
}

// NewProjector builds a Projector. A nil jitter falls back to DefaultJitter.
func NewProjector(repo ProjectionPort, calendar holiday.Calendar, jitter Jitter, cfg ServiceConfig) *Projector {
	if jitter == nil {
		jitter = DefaultJitter
	}
	return &Projector{
		repo:     repo,
		calendar: calendar,
		jitter:   jitter,
		collator: collate.New(language.Czech),
		now:      time.Now,
		cfg:      cfg.withDefaults(),
	}
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func timetableOn(timetables []Timetable, day time.Time) (Timetable, bool) {
	for _, t := range timetables {
		if t.Validity.Contains(day) {
			return t, true
		}
	}
	return Timetable{}, false
}

// MonthlyAttendance produces one entry per calendar day of the month for a
// contract, reconciling presence records, the timetable and the department
// policy. Callers must be the contract's employee, a supervisor of its
// department, or an admin.
func (p *Projector) MonthlyAttendance(ctx context.Context, actor shared.Identity, pvid string, year int, month time.Month) ([]DayEntry, error) {
	contract, err := p.repo.GetContractByPVID(ctx, pvid)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrUnknownContract
		}
		return nil, err
	}
	emp, err := p.repo.GetEmployee(ctx, contract.EmployeeUID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UID != emp.UID && !actor.Supervises(contract.Department) {
		return nil, shared.ErrForbidden
	}

	span := interval.MonthRange(year, month)
	presences, err := p.repo.ListPresenceRange(ctx, emp.UID, span)
	if err != nil {
		return nil, err
	}
	byDay := make(map[int]Presence, len(presences))
	for _, pr := range presences {
		byDay[pr.Date.Day()] = pr
	}
	timetables, err := p.repo.ListTimetables(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	policies, err := p.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	policy := ResolvePolicy(policies, contract.Department)
	today := interval.DayOf(p.now())

	days := span.Upper.Day()
	entries := make([]DayEntry, 0, days)
	for d := 1; d <= days; d++ {
		date := interval.Date(year, month, d)
		entry := DayEntry{Day: d, Date: date}
		if pr, ok := byDay[d]; ok {
			mode := pr.Mode
			arrival, departure := pr.Arrival, pr.Departure
			entry.Mode = &mode
			entry.Arrival = &arrival
			entry.Departure = &departure
		}
		if !isWeekend(date) && !p.calendar.IsHoliday(date) {
			if t, ok := timetableOn(timetables, date); ok {
				if shift := t.ShiftFor(date); !shift.IsEmpty() {
					entry.Timetable = &shift
				}
			}
		}
		future := date.After(today)
		switch {
		case policy == PolicyAuto && entry.Timetable != nil && !future && autoFillable(entry.Mode):
			earlier, later := p.jitter()
			arrival := entry.Timetable.From - interval.TimeOfDay(earlier)
			departure := entry.Timetable.To + interval.TimeOfDay(later)
			mode := ModePresence
			entry.Mode = &mode
			entry.Arrival = &arrival
			entry.Departure = &departure
		case entry.Mode == nil && entry.Timetable != nil && !future:
			mode := ModeAbsence
			entry.Mode = &mode
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// autoFillable reports whether the auto policy may overwrite the day:
// unset, unexplained absence and plain presence are fair game, explicit
// classifications like vacation stay.
func autoFillable(mode *PresenceMode) bool {
	return mode == nil || *mode == ModeAbsence || *mode == ModePresence
}

// DepartmentGrid computes the per-day symbol grid for every contract under
// the department prefix during the month. Rows of the same employee merge
// cell-by-cell keyed by employee uid; the contract id tags the row for
// display only.
func (p *Projector) DepartmentGrid(ctx context.Context, actor shared.Identity, dept string, year int, month time.Month) ([]GridRow, error) {
	if !actor.IsAdmin() && !actor.Supervises(dept) {
		return nil, shared.ErrForbidden
	}
	span := interval.MonthRange(year, month)
	contracts, err := p.repo.ListContractsByDepartmentPrefix(ctx, dept, span)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return []GridRow{}, nil
	}
	employees, err := p.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(employees))
	for _, e := range employees {
		names[e.UID] = e.Name
	}
	policies, err := p.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	today := interval.DayOf(p.now())
	days := span.Upper.Day()

	presenceCache := make(map[uuid.UUID]map[int]Presence)
	rows := make(map[uuid.UUID]*GridRow)

	for _, contract := range contracts {
		byDay, ok := presenceCache[contract.EmployeeUID]
		if !ok {
			list, err := p.repo.ListPresenceRange(ctx, contract.EmployeeUID, span)
			if err != nil {
				return nil, err
			}
			byDay = make(map[int]Presence, len(list))
			for _, pr := range list {
				byDay[pr.Date.Day()] = pr
			}
			presenceCache[contract.EmployeeUID] = byDay
		}
		timetables, err := p.repo.ListTimetables(ctx, contract.ID)
		if err != nil {
			return nil, err
		}
		policy := ResolvePolicy(policies, contract.Department)

		cells := make([]string, days)
		for d := 1; d <= days; d++ {
			date := interval.Date(year, month, d)
			cells[d-1] = p.cellSymbol(contract, timetables, byDay, policy, date, today)
		}

		row, ok := rows[contract.EmployeeUID]
		if !ok {
			rows[contract.EmployeeUID] = &GridRow{
				EmployeeUID: contract.EmployeeUID,
				Name:        names[contract.EmployeeUID],
				PVID:        contract.PVID,
				Cells:       cells,
			}
			continue
		}
		// Contract change mid-month: keep the concrete symbol per cell.
		for i, sym := range cells {
			if row.Cells[i] == SymbolNone && sym != SymbolNone {
				row.Cells[i] = sym
			}
		}
	}

	out := make([]GridRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := p.collator.CompareString(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].PVID < out[j].PVID
	})
	return out, nil
}

func (p *Projector) cellSymbol(contract Contract, timetables []Timetable, byDay map[int]Presence, policy Policy, date, today time.Time) string {
	if isWeekend(date) {
		return SymbolWeekend
	}
	if p.calendar.IsHoliday(date) || date.After(today) || !contract.Validity.Contains(date) {
		return SymbolNone
	}
	t, ok := timetableOn(timetables, date)
	if !ok {
		return SymbolNone
	}
	shift := t.ShiftFor(date)
	if shift.IsEmpty() {
		return SymbolNone
	}
	fullShift := shift.PaidMinutes() >= p.cfg.FoodStampMinutes

	pr, ok := byDay[date.Day()]
	if !ok {
		if policy == PolicyAuto {
			if fullShift {
				return SymbolFullDay
			}
			return SymbolShortDay
		}
		return SymbolAbsence
	}
	sym := Symbol(pr.Mode, pr.FoodStamp)
	// Auto never penalises a short automatic record against a full shift.
	if policy == PolicyAuto && fullShift && (sym == SymbolShortDay || sym == SymbolAbsence) {
		return SymbolFullDay
	}
	return sym
}

// PresentRoster lists, per known department, the employees whose presence
// row for the day reads Presence and whose contract sits exactly in that
// department.
func (p *Projector) PresentRoster(ctx context.Context, day time.Time) ([]DeptRoster, error) {
	day = interval.DayOf(day)
	departments, err := p.repo.DistinctDepartments(ctx)
	if err != nil {
		return nil, err
	}
	presences, err := p.repo.ListPresenceByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	present := make(map[uuid.UUID]bool)
	for _, pr := range presences {
		if pr.Mode == ModePresence {
			present[pr.EmployeeUID] = true
		}
	}
	contracts, err := p.repo.ListContractsActiveOn(ctx, day)
	if err != nil {
		return nil, err
	}
	employees, err := p.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(employees))
	for _, e := range employees {
		names[e.UID] = e.Name
	}

	byDept := make(map[string]map[uuid.UUID]struct{})
	for _, c := range contracts {
		if !present[c.EmployeeUID] {
			continue
		}
		set, ok := byDept[c.Department]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			byDept[c.Department] = set
		}
		set[c.EmployeeUID] = struct{}{}
	}

	sort.Strings(departments)
	out := make([]DeptRoster, 0, len(departments))
	for _, dept := range departments {
		roster := DeptRoster{Department: dept, Names: []string{}}
		for uid := range byDept[dept] {
			roster.Names = append(roster.Names, names[uid])
		}
		sort.Slice(roster.Names, func(i, j int) bool {
			return p.collator.CompareString(roster.Names[i], roster.Names[j]) < 0
		})
		out = append(out, roster)
	}
	return out, nil
}

// Departments returns the sorted distinct department codes, recomputed per
// request.
func (p *Projector) Departments(ctx context.Context) ([]string, error) {
	departments, err := p.repo.DistinctDepartments(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(departments)
	return departments, nil
}
