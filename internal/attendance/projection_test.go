package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/presenta/presenta/internal/holiday"
	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/shared"
)

func newTestProjector(repo *memoryRepo, jitter Jitter) *Projector {
	p := NewProjector(repo, holiday.Czech{}, jitter, ServiceConfig{})
	p.now = func() time.Time { return interval.Date(2024, time.April, 1) }
	return p
}

func seedTimetable(t *testing.T, repo *memoryRepo, contractID int64, from, to string, lower time.Time) {
	t.Helper()
	week := WeekSchedule{}
	for i := range week {
		week[i] = interval.TimeRange{From: interval.MustTimeOfDay(from), To: interval.MustTimeOfDay(to)}
	}
	_, err := repo.InsertTimetable(context.Background(), Timetable{
		ContractID: contractID,
		Validity:   interval.NewDateRange(lower, time.Time{}),
		Even:       week,
		Odd:        week,
	})
	require.NoError(t, err)
}

func TestMonthlyAttendanceEndToEnd(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})
	emp := addEmployee(repo, "Eva Horakova", "555", "9001")
	contract := seedContract(t, repo, emp, "555.1", "12", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))

	// Monday 2024-03-04: badge scans 08:05 and 16:20.
	day := interval.Date(2024, time.March, 4)
	source := staticBadgeSource{"9001": {day.Add(8*time.Hour + 5*time.Minute), day.Add(16*time.Hour + 20*time.Minute)}}
	require.NoError(t, svc.RunBadgeSync(context.Background(), source, day))

	proj := newTestProjector(repo, nil)
	entries, err := proj.MonthlyAttendance(context.Background(), admin, "555.1", 2024, time.March)
	require.NoError(t, err)
	require.Len(t, entries, 31)

	monday := entries[3]
	require.Equal(t, 4, monday.Day)
	require.NotNil(t, monday.Mode)
	require.Equal(t, ModePresence, *monday.Mode)
	require.Equal(t, interval.MustTimeOfDay("08:05"), *monday.Arrival)
	require.Equal(t, interval.MustTimeOfDay("16:20"), *monday.Departure)

	// Saturday March 9 has no timetable and no derived mode.
	saturday := entries[8]
	require.Nil(t, saturday.Timetable)
	require.Nil(t, saturday.Mode)

	// A scheduled weekday without a record defaults to Absence.
	tuesday := entries[4]
	require.NotNil(t, tuesday.Mode)
	require.Equal(t, ModeAbsence, *tuesday.Mode)
	require.NotNil(t, tuesday.Timetable)

	// Good Friday 2024-03-29 is a holiday: no timetable.
	require.Nil(t, entries[28].Timetable)
}

func TestMonthlyAttendanceAuthorization(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")
	other := addEmployee(repo, "Petr Svoboda", "77", "")
	contract := seedContract(t, repo, emp, "555.1", "123", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	proj := newTestProjector(repo, nil)

	_, err := proj.MonthlyAttendance(context.Background(), shared.Identity{UID: other.UID}, "555.1", 2024, time.March)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = proj.MonthlyAttendance(context.Background(), shared.Identity{UID: other.UID, ACL: "12"}, "555.1", 2024, time.March)
	require.NoError(t, err)

	_, err = proj.MonthlyAttendance(context.Background(), shared.Identity{UID: emp.UID}, "555.1", 2024, time.March)
	require.NoError(t, err)

	_, err = proj.MonthlyAttendance(context.Background(), admin, "nope.1", 2024, time.March)
	require.ErrorIs(t, err, ErrUnknownContract)
}

func TestMonthlyAttendanceAutoFill(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")
	contract := seedContract(t, repo, emp, "555.1", "12", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	repo.policies["12"] = PolicyAuto

	proj := newTestProjector(repo, func() (int, int) { return 10, 5 })
	entries, err := proj.MonthlyAttendance(context.Background(), admin, "555.1", 2024, time.March)
	require.NoError(t, err)

	monday := entries[3]
	require.Equal(t, ModePresence, *monday.Mode)
	require.Equal(t, interval.MustTimeOfDay("07:50"), *monday.Arrival)
	require.Equal(t, interval.MustTimeOfDay("16:35"), *monday.Departure)

	// weekends stay untouched under auto
	require.Nil(t, entries[8].Mode)

	// explicit classifications survive auto fill
	require.NoError(t, repo.InsertPresence(context.Background(), Presence{
		EmployeeUID: emp.UID, Date: interval.Date(2024, time.March, 5),
		Arrival: interval.MustTimeOfDay("00:00"), Departure: interval.MustTimeOfDay("00:00"),
		Mode: ModeVacation,
	}))
	entries, err = proj.MonthlyAttendance(context.Background(), admin, "555.1", 2024, time.March)
	require.NoError(t, err)
	require.Equal(t, ModeVacation, *entries[4].Mode)
}

func TestDepartmentGridSymbols(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")
	contract := seedContract(t, repo, emp, "555.1", "12", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))

	require.NoError(t, repo.InsertPresence(context.Background(), Presence{
		EmployeeUID: emp.UID, Date: interval.Date(2024, time.March, 4),
		Arrival: interval.MustTimeOfDay("08:05"), Departure: interval.MustTimeOfDay("16:20"),
		Mode: ModePresence, FoodStamp: true,
	}))
	require.NoError(t, repo.InsertPresence(context.Background(), Presence{
		EmployeeUID: emp.UID, Date: interval.Date(2024, time.March, 5),
		Mode: ModeVacation,
	}))

	proj := newTestProjector(repo, nil)
	rows, err := proj.DepartmentGrid(context.Background(), admin, "12", 2024, time.March)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "Eva Horakova", row.Name)
	require.Equal(t, "555.1", row.PVID)
	require.Len(t, row.Cells, 31)

	require.Equal(t, "/", row.Cells[3])           // recorded full presence
	require.Equal(t, "D", row.Cells[4])           // vacation
	require.Equal(t, SymbolWeekend, row.Cells[8]) // Saturday March 9
	require.Equal(t, SymbolAbsence, row.Cells[5]) // scheduled, no record
	require.Equal(t, SymbolNone, row.Cells[28])   // Good Friday
}

func TestDepartmentGridAutoPolicy(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")
	contract := seedContract(t, repo, emp, "555.1", "12", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	repo.policies["12"] = PolicyAuto

	// a short recorded day that auto must not penalise against a full shift
	require.NoError(t, repo.InsertPresence(context.Background(), Presence{
		EmployeeUID: emp.UID, Date: interval.Date(2024, time.March, 5),
		Arrival: interval.MustTimeOfDay("10:00"), Departure: interval.MustTimeOfDay("12:00"),
		Mode: ModePresence, FoodStamp: false,
	}))

	proj := newTestProjector(repo, nil)
	rows, err := proj.DepartmentGrid(context.Background(), admin, "12", 2024, time.March)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "/", rows[0].Cells[3]) // synthesized: full shift, no record
	require.Equal(t, "/", rows[0].Cells[4]) // short record upgraded
}

func TestDepartmentGridMergesContractChange(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")

	first, err := repo.InsertContract(context.Background(), Contract{
		PVID: "555.1", EmployeeUID: emp.UID, Occupancy: decimal.NewFromInt(1), Department: "12",
		Validity: interval.NewDateRange(interval.Date(2024, time.January, 1), interval.Date(2024, time.March, 15)),
	})
	require.NoError(t, err)
	second, err := repo.InsertContract(context.Background(), Contract{
		PVID: "555.2", EmployeeUID: emp.UID, Occupancy: decimal.NewFromInt(1), Department: "121",
		Validity: interval.NewDateRange(interval.Date(2024, time.March, 16), time.Time{}),
	})
	require.NoError(t, err)
	seedTimetable(t, repo, first, "08:00", "16:30", interval.Date(2024, time.January, 1))
	seedTimetable(t, repo, second, "08:00", "16:30", interval.Date(2024, time.March, 16))

	proj := newTestProjector(repo, nil)
	rows, err := proj.DepartmentGrid(context.Background(), admin, "12", 2024, time.March)
	require.NoError(t, err)
	require.Len(t, rows, 1, "both contracts merge into one row keyed by employee")

	row := rows[0]
	require.Equal(t, SymbolAbsence, row.Cells[3])  // March 4, first contract
	require.Equal(t, SymbolAbsence, row.Cells[17]) // March 18, second contract fills the '-'
}

func TestPresentRoster(t *testing.T) {
	repo := newMemoryRepo()
	eva := addEmployee(repo, "Eva Horakova", "555", "")
	petr := addEmployee(repo, "Petr Svoboda", "77", "")
	ada := addEmployee(repo, "Adela Mala", "88", "")
	seedContract(t, repo, eva, "555.1", "12", 1.0)
	seedContract(t, repo, petr, "77.1", "12", 1.0)
	seedContract(t, repo, ada, "88.1", "2", 1.0)

	day := interval.Date(2024, time.March, 4)
	for _, e := range []Employee{eva, ada} {
		require.NoError(t, repo.InsertPresence(context.Background(), Presence{
			EmployeeUID: e.UID, Date: day,
			Arrival: interval.MustTimeOfDay("08:00"), Departure: interval.MustTimeOfDay("16:30"),
			Mode: ModePresence, FoodStamp: true,
		}))
	}
	// petr is on vacation, not present
	require.NoError(t, repo.InsertPresence(context.Background(), Presence{
		EmployeeUID: petr.UID, Date: day, Mode: ModeVacation,
	}))

	proj := newTestProjector(repo, nil)
	rosters, err := proj.PresentRoster(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, rosters, 2)
	require.Equal(t, "12", rosters[0].Department)
	require.Equal(t, []string{"Eva Horakova"}, rosters[0].Names)
	require.Equal(t, "2", rosters[1].Department)
	require.Equal(t, []string{"Adela Mala"}, rosters[1].Names)
}

func TestDepartments(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Eva Horakova", "555", "")
	seedContract(t, repo, emp, "555.1", "12", 1.0)
	seedContract(t, repo, emp, "555.2", "2", 0.5)

	proj := newTestProjector(repo, nil)
	depts, err := proj.Departments(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"12", "2"}, depts)
}
