// Package attendance implements the reconciliation engine: contract and
// timetable synchronisation from the HR source, daily presence records
// derived from badge scans, and the calendar/report projections built on
// top of them.
package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/shared"
)

var (
	// ErrHoursMismatch indicates the submitted timetable does not add up to
	// the contract's occupancy.
	ErrHoursMismatch = errors.New("attendance: weekly hours do not match occupancy")
	// ErrIncompleteTimetable indicates a weekday without an explicit range.
	ErrIncompleteTimetable = errors.New("attendance: every weekday needs an explicit range")
	// ErrUnknownContract indicates the pvid is not on record.
	ErrUnknownContract = fmt.Errorf("attendance: unknown contract: %w", shared.ErrNotFound)
	// ErrUnknownEmployee indicates the employee is not on record.
	ErrUnknownEmployee = fmt.Errorf("attendance: unknown employee: %w", shared.ErrNotFound)
)

// Employee mirrors a person synchronised from the HR system. ACL is either
// empty (plain user), shared.ACLAdmin, or a department-code prefix.
type Employee struct {
	UID      uuid.UUID
	EmpNo    string
	Name     string
	Username string
	BadgeID  string
	ACL      string
}

// Contract is a work relation: one employee, one department assignment, a
// fractional occupancy and a date-bounded validity. History is append-only;
// contracts are retired by narrowing validity, never deleted.
type Contract struct {
	ID          int64
	PVID        string
	EmployeeUID uuid.UUID
	Occupancy   decimal.Decimal
	Department  string
	Validity    interval.DateRange
}

// ContractRecord is one entry reported by the HR source for an employee.
type ContractRecord struct {
	PVID       string
	EmpNo      string
	Occupancy  decimal.Decimal
	Department string
	Validity   interval.DateRange
}

// WeekSchedule holds the Monday..Friday shift ranges of one week. Weekends
// are never scheduled. An empty range marks a non-working day.
type WeekSchedule [5]interval.TimeRange

// PaidMinutes sums the paid minutes of the whole week.
func (s WeekSchedule) PaidMinutes() int {
	total := 0
	for _, r := range s {
		total += r.PaidMinutes()
	}
	return total
}

// Timetable is a weekly schedule bound to a contract. When Split is set the
// Odd schedule applies to odd ISO weeks and Even to even ones; otherwise
// Even covers every week.
type Timetable struct {
	ID         int64
	ContractID int64
	Validity   interval.DateRange
	Split      bool
	Even       WeekSchedule
	Odd        WeekSchedule
}

// ShiftFor returns the scheduled shift for the date, or an empty range for
// weekends and unscheduled days.
func (t Timetable) ShiftFor(day time.Time) interval.TimeRange {
	wd := int(day.Weekday()+6) % 7 // Monday = 0
	if wd >= 5 {
		return interval.TimeRange{}
	}
	if t.Split {
		if _, week := day.ISOWeek(); week%2 == 1 {
			return t.Odd[wd]
		}
	}
	return t.Even[wd]
}

// PresenceMode classifies a day of attendance.
type PresenceMode string

// The enumerated day classifications.
const (
	ModePresence             PresenceMode = "Presence"
	ModeAbsence              PresenceMode = "Absence"
	ModeVacation             PresenceMode = "Vacation"
	ModeVacationHalf         PresenceMode = "Vacation-half"
	ModeSickness             PresenceMode = "Sickness"
	ModeBusinessTrip         PresenceMode = "Business-trip"
	ModeTraining             PresenceMode = "Training"
	ModeOnCall               PresenceMode = "On-call"
	ModeCompTimeOff          PresenceMode = "Compensatory-time-off"
	ModeFamilyCare           PresenceMode = "Family-care"
	ModePersonalTrouble      PresenceMode = "Personal-trouble"
	ModeUnpaidLeave          PresenceMode = "Unpaid-leave"
	ModePublicBenefit        PresenceMode = "Public-benefit"
	ModeSickDay              PresenceMode = "Sick-day"
	ModeEmployerDifficulties PresenceMode = "Employer-difficulties"
	ModeStudy                PresenceMode = "Study"
)

// Valid reports whether the mode is one of the enumerated classifications.
func (m PresenceMode) Valid() bool {
	switch m {
	case ModePresence, ModeAbsence, ModeVacation, ModeVacationHalf, ModeSickness,
		ModeBusinessTrip, ModeTraining, ModeOnCall, ModeCompTimeOff, ModeFamilyCare,
		ModePersonalTrouble, ModeUnpaidLeave, ModePublicBenefit, ModeSickDay,
		ModeEmployerDifficulties, ModeStudy:
		return true
	}
	return false
}

// Presence is the single attendance record per employee and calendar day.
type Presence struct {
	EmployeeUID uuid.UUID
	Date        time.Time
	Arrival     interval.TimeOfDay
	Departure   interval.TimeOfDay
	Mode        PresenceMode
	FoodStamp   bool
}

// Span returns the recorded arrival-departure range.
func (p Presence) Span() interval.TimeRange {
	return interval.TimeRange{From: p.Arrival, To: p.Departure}
}

// Policy governs how days without a presence record are treated within a
// department subtree.
type Policy string

// Department policies, in precedence order.
const (
	// PolicyReadonly locks records from edits; missing days stay untouched.
	PolicyReadonly Policy = "readonly"
	// PolicyEdit records missing days as unexplained absence. The default.
	PolicyEdit Policy = "edit"
	// PolicyAuto fills missing days from the timetable.
	PolicyAuto Policy = "auto"
)

// DepartmentPolicy binds a policy to a department-code prefix.
type DepartmentPolicy struct {
	Department string
	Policy     Policy
}
