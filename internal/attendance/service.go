package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, uid uuid.UUID) (Employee, error)
	GetEmployeeByUsername(ctx context.Context, username string) (Employee, error)
	GetContractByPVID(ctx context.Context, pvid string) (Contract, error)
	ListContractsByEmployee(ctx context.Context, uid uuid.UUID) ([]Contract, error)
	ListPolicies(ctx context.Context) (map[string]Policy, error)
	UpsertPolicy(ctx context.Context, p DepartmentPolicy) error
}

// TxRepository is the write surface available inside one transaction.
type TxRepository interface {
	FindContract(ctx context.Context, employeeUID uuid.UUID, pvid string, occupancy decimal.Decimal, department string) (Contract, error)
	UpdateContractValidity(ctx context.Context, id int64, validity interval.DateRange) error
	InsertContract(ctx context.Context, c Contract) (int64, error)
	CurrentTimetable(ctx context.Context, contractID int64, day time.Time) (Timetable, error)
	NarrowTimetableValidity(ctx context.Context, id int64, upper time.Time) error
	InsertTimetable(ctx context.Context, t Timetable) (int64, error)
	GetPresence(ctx context.Context, uid uuid.UUID, day time.Time) (Presence, error)
	InsertPresence(ctx context.Context, p Presence) error
	UpdatePresence(ctx context.Context, p Presence) error
	SetACL(ctx context.Context, uids []uuid.UUID, acl string) error
}

// BadgeSource reads daily badge scan boundaries for one badge asset.
type BadgeSource interface {
	Arrival(ctx context.Context, day time.Time, badgeID string) (time.Time, bool, error)
	Departure(ctx context.Context, day time.Time, badgeID string) (time.Time, bool, error)
}

// ContractSource reports the currently known contracts for a personnel number.
type ContractSource interface {
	Contracts(ctx context.Context, empNo string) ([]ContractRecord, error)
}

// AuditPort records manual corrections.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig carries the business policy constants.
type ServiceConfig struct {
	// FoodStampMinutes is the paid-minute threshold for meal-benefit
	// eligibility. 240 unless configured otherwise.
	FoodStampMinutes int
	// BusinessTripMinutes is the carve-out threshold for business trips.
	BusinessTripMinutes int
	// SourceTimeout bounds every call to an external source.
	SourceTimeout time.Duration
	// SyncWorkers bounds the badge fan-out.
	SyncWorkers int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.FoodStampMinutes <= 0 {
		c.FoodStampMinutes = 240
	}
	if c.BusinessTripMinutes <= 0 {
		c.BusinessTripMinutes = 240
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 15 * time.Second
	}
	if c.SyncWorkers <= 0 {
		c.SyncWorkers = 8
	}
	return c
}

// Service owns the write paths of the engine: contract and timetable
// synchronisation, presence reconciliation and manual corrections.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, cfg: cfg.withDefaults()}
}

// ResolveIdentity maps a trusted username onto the caller identity.
func (s *Service) ResolveIdentity(ctx context.Context, username string) (shared.Identity, error) {
	emp, err := s.repo.GetEmployeeByUsername(ctx, username)
	if err != nil {
		return shared.Identity{}, err
	}
	return shared.Identity{UID: emp.UID, Username: emp.Username, ACL: emp.ACL}, nil
}

// RunContractSync pulls the contract list of every employee from the HR
// source and reconciles it into the store. The whole cycle commits as one
// transaction; any failure rolls the cycle back and leaves it to the
// scheduler to retry.
func (s *Service) RunContractSync(ctx context.Context, source ContractSource) error {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("contract sync: list employees: %w", err)
	}

	type fetched struct {
		employee Employee
		records  []ContractRecord
	}
	batch := make([]fetched, 0, len(employees))
	for _, emp := range employees {
		if emp.EmpNo == "" {
			continue
		}
		srcCtx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
		records, err := source.Contracts(srcCtx, emp.EmpNo)
		cancel()
		if err != nil {
			return fmt.Errorf("contract sync: fetch %s: %w", emp.EmpNo, err)
		}
		batch = append(batch, fetched{employee: emp, records: records})
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range batch {
			for _, rec := range item.records {
				if rec.Validity.IsEmpty() {
					s.logger.Warn("contract sync: dropping inverted validity",
						slog.String("pvid", rec.PVID), slog.String("validity", rec.Validity.String()))
					continue
				}
				if err := s.syncOne(ctx, tx, item.employee, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// syncOne applies one source record: identical tuple and validity is a no-op,
// a tuple match with different validity takes the source span, anything else
// inserts a new contract.
func (s *Service) syncOne(ctx context.Context, tx TxRepository, emp Employee, rec ContractRecord) error {
	existing, err := tx.FindContract(ctx, emp.UID, rec.PVID, rec.Occupancy, rec.Department)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		_, err := tx.InsertContract(ctx, Contract{
			PVID:        rec.PVID,
			EmployeeUID: emp.UID,
			Occupancy:   rec.Occupancy,
			Department:  rec.Department,
			Validity:    rec.Validity,
		})
		return err
	case err != nil:
		return err
	}
	if existing.Validity.Equal(rec.Validity) {
		return nil
	}
	return tx.UpdateContractValidity(ctx, existing.ID, rec.Validity)
}

// DayInput is one weekday of a timetable submission. Both bounds must be
// supplied; equal bounds mark a non-working day.
type DayInput struct {
	From *interval.TimeOfDay
	To   *interval.TimeOfDay
}

// TimetableInput is a full timetable submission effective from a given day.
type TimetableInput struct {
	Effective time.Time
	Split     bool
	Even      [5]DayInput
	Odd       [5]DayInput
}

func buildWeek(days [5]DayInput) (WeekSchedule, error) {
	var week WeekSchedule
	for i, d := range days {
		if d.From == nil || d.To == nil {
			return week, fmt.Errorf("%w: %w", shared.ErrValidation, ErrIncompleteTimetable)
		}
		if *d.To < *d.From {
			return week, fmt.Errorf("%w: weekday %d range inverted", shared.ErrValidation, i)
		}
		week[i] = interval.TimeRange{From: *d.From, To: *d.To}
	}
	return week, nil
}

// SetTimetable validates and versions a new weekly schedule for a contract.
// The previous timetable's validity is closed to the day before the new
// effective date; the change is atomic.
func (s *Service) SetTimetable(ctx context.Context, actor shared.Identity, pvid string, input TimetableInput) error {
	contract, err := s.repo.GetContractByPVID(ctx, pvid)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownContract
		}
		return err
	}
	emp, err := s.repo.GetEmployee(ctx, contract.EmployeeUID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.UID != emp.UID && !actor.Supervises(contract.Department) {
		return shared.ErrForbidden
	}

	even, err := buildWeek(input.Even)
	if err != nil {
		return err
	}
	odd := even
	if input.Split {
		if odd, err = buildWeek(input.Odd); err != nil {
			return err
		}
	}
	if err := validateWeeklyHours(contract.Occupancy, even, odd, input.Split); err != nil {
		return err
	}

	effective := interval.DayOf(input.Effective)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.CurrentTimetable(ctx, contract.ID, effective)
		switch {
		case errors.Is(err, shared.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := tx.NarrowTimetableValidity(ctx, current.ID, effective.AddDate(0, 0, -1)); err != nil {
				return err
			}
		}
		_, err = tx.InsertTimetable(ctx, Timetable{
			ContractID: contract.ID,
			Validity:   interval.NewDateRange(effective, time.Time{}),
			Split:      input.Split,
			Even:       even,
			Odd:        odd,
		})
		return err
	})
}

// validateWeeklyHours checks the paid weekly hours against the occupancy:
// a plain schedule must come to 40 x occupancy hours, a split schedule's
// two-week average to 40 x occupancy or 20 x occupancy exactly.
func validateWeeklyHours(occupancy decimal.Decimal, even, odd WeekSchedule, split bool) error {
	sixty := decimal.NewFromInt(60)
	full := decimal.NewFromInt(40).Mul(occupancy)
	if !split {
		hours := decimal.NewFromInt(int64(even.PaidMinutes())).Div(sixty)
		if !hours.Equal(full) {
			return fmt.Errorf("%w: %w: got %s hours, want %s", shared.ErrValidation, ErrHoursMismatch, hours, full)
		}
		return nil
	}
	avg := decimal.NewFromInt(int64(even.PaidMinutes() + odd.PaidMinutes())).Div(decimal.NewFromInt(120))
	half := decimal.NewFromInt(20).Mul(occupancy)
	if !avg.Equal(full) && !avg.Equal(half) {
		return fmt.Errorf("%w: %w: two-week average %s, want %s or %s", shared.ErrValidation, ErrHoursMismatch, avg, full, half)
	}
	return nil
}

// RunBadgeSync queries the badge source for every badged employee on the
// reference day and upserts presence rows. Re-running is idempotent for
// identical scans and monotonically widening otherwise: a recorded earlier
// arrival or later departure is never lost.
func (s *Service) RunBadgeSync(ctx context.Context, source BadgeSource, day time.Time) error {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("badge sync: list employees: %w", err)
	}
	day = interval.DayOf(day)

	type scan struct {
		uid       uuid.UUID
		arrival   interval.TimeOfDay
		departure interval.TimeOfDay
	}
	scans := make(chan scan, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SyncWorkers)
	for _, emp := range employees {
		if emp.BadgeID == "" {
			continue
		}
		g.Go(func() error {
			srcCtx, cancel := context.WithTimeout(gctx, s.cfg.SourceTimeout)
			defer cancel()
			arrival, ok, err := source.Arrival(srcCtx, day, emp.BadgeID)
			if err != nil {
				return fmt.Errorf("badge sync: arrival %s: %w", emp.EmpNo, err)
			}
			if !ok {
				return nil // no badge event that day
			}
			departure, ok, err := source.Departure(srcCtx, day, emp.BadgeID)
			if err != nil {
				return fmt.Errorf("badge sync: departure %s: %w", emp.EmpNo, err)
			}
			if !ok {
				departure = arrival
			}
			scans <- scan{uid: emp.UID, arrival: interval.TimeOfDayOf(arrival), departure: interval.TimeOfDayOf(departure)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(scans)

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for sc := range scans {
			if err := s.reconcileScan(ctx, tx, day, sc.uid, sc.arrival, sc.departure); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) reconcileScan(ctx context.Context, tx TxRepository, day time.Time, uid uuid.UUID, arrival, departure interval.TimeOfDay) error {
	existing, err := tx.GetPresence(ctx, uid, day)
	if errors.Is(err, shared.ErrNotFound) {
		p := Presence{
			EmployeeUID: uid,
			Date:        day,
			Arrival:     arrival,
			Departure:   departure,
			Mode:        ModePresence,
		}
		p.FoodStamp = s.foodStamp(p.Span(), p.Mode)
		return tx.InsertPresence(ctx, p)
	}
	if err != nil {
		return err
	}
	widened := existing
	if arrival < widened.Arrival {
		widened.Arrival = arrival
	}
	if departure > widened.Departure {
		widened.Departure = departure
	}
	if widened.Arrival == existing.Arrival && widened.Departure == existing.Departure {
		return nil
	}
	widened.FoodStamp = s.foodStamp(widened.Span(), widened.Mode)
	return tx.UpdatePresence(ctx, widened)
}

func (s *Service) foodStamp(span interval.TimeRange, mode PresenceMode) bool {
	threshold := s.cfg.FoodStampMinutes
	if mode == ModeBusinessTrip {
		threshold = s.cfg.BusinessTripMinutes
	}
	return span.PaidMinutes() >= threshold
}

// SetAttendance is the manual correction path: it replaces the presence row
// for the day outright, food stamp recomputed from the given span.
func (s *Service) SetAttendance(ctx context.Context, actor shared.Identity, employeeUID uuid.UUID, day time.Time, from, to interval.TimeOfDay, mode PresenceMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown presence mode %q", shared.ErrValidation, mode)
	}
	if to < from {
		return fmt.Errorf("%w: departure before arrival", shared.ErrValidation)
	}
	emp, err := s.repo.GetEmployee(ctx, employeeUID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownEmployee
		}
		return err
	}
	day = interval.DayOf(day)
	if err := s.authorizeEdit(ctx, actor, emp, day); err != nil {
		return err
	}

	p := Presence{
		EmployeeUID: emp.UID,
		Date:        day,
		Arrival:     from,
		Departure:   to,
		Mode:        mode,
	}
	p.FoodStamp = s.foodStamp(p.Span(), mode)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.GetPresence(ctx, emp.UID, day)
		if errors.Is(err, shared.ErrNotFound) {
			return tx.InsertPresence(ctx, p)
		}
		if err != nil {
			return err
		}
		return tx.UpdatePresence(ctx, p)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "attendance.set", "presence", fmt.Sprintf("%s/%s", emp.UID, day.Format("2006-01-02")), map[string]any{
		"mode": string(mode), "from": from.String(), "to": to.String(),
	})
	return nil
}

// authorizeEdit applies the scope guard plus the readonly department policy.
// Admins may edit locked departments; nobody else edits an employee outside
// their own account or supervised subtree.
func (s *Service) authorizeEdit(ctx context.Context, actor shared.Identity, target Employee, day time.Time) error {
	if actor.IsAdmin() {
		return nil
	}
	contracts, err := s.repo.ListContractsByEmployee(ctx, target.UID)
	if err != nil {
		return err
	}
	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return err
	}
	allowed := false
	for _, c := range contracts {
		if !c.Validity.Contains(day) {
			continue
		}
		if ResolvePolicy(policies, c.Department) == PolicyReadonly {
			return shared.ErrForbidden
		}
		if actor.UID == target.UID || actor.Supervises(c.Department) {
			allowed = true
		}
	}
	if !allowed {
		return shared.ErrForbidden
	}
	return nil
}

// ListEmployees returns the employee roster for acl administration.
func (s *Service) ListEmployees(ctx context.Context, actor shared.Identity) ([]Employee, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListEmployees(ctx)
}

// UpdateACL batch-updates the access-control tag of the given employees.
func (s *Service) UpdateACL(ctx context.Context, actor shared.Identity, uids []uuid.UUID, acl string) error {
	if !actor.IsAdmin() {
		return shared.ErrForbidden
	}
	if len(uids) == 0 {
		return nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetACL(ctx, uids, acl)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "employee.acl", "employee", fmt.Sprintf("%d employees", len(uids)), map[string]any{"acl": acl})
	return nil
}

// ListPolicies returns every configured policy override, sorted by
// department code. Admin only.
func (s *Service) ListPolicies(ctx context.Context, actor shared.Identity) ([]DepartmentPolicy, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	byDept, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentPolicy, 0, len(byDept))
	for dept, policy := range byDept {
		out = append(out, DepartmentPolicy{Department: dept, Policy: policy})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out, nil
}

// SetDepartmentPolicy configures the policy for a department-code prefix.
func (s *Service) SetDepartmentPolicy(ctx context.Context, actor shared.Identity, p DepartmentPolicy) error {
	if !actor.IsAdmin() {
		return shared.ErrForbidden
	}
	switch p.Policy {
	case PolicyEdit, PolicyReadonly, PolicyAuto:
	default:
		return fmt.Errorf("%w: unknown policy %q", shared.ErrValidation, p.Policy)
	}
	if p.Department == "" {
		return fmt.Errorf("%w: department required", shared.ErrValidation)
	}
	if err := s.repo.UpsertPolicy(ctx, p); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "policy.set", "dept_policy", p.Department, map[string]any{"policy": string(p.Policy)})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Identity, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorUID: actor.UID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       time.Now(),
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
