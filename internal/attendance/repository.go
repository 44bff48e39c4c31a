package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/shared"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the engine state in Postgres. Validity columns use the
// native daterange type; the closed upper bound maps onto the canonical
// exclusive form on the way in and back on the way out.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// WithTx executes the callback inside a repeatable-read transaction with
// commit on success and rollback on any error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{queries{db: tx}}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	queries
}

type queries struct {
	db dbtx
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

// range conversions

func pgRange(r interval.DateRange) pgtype.Range[pgtype.Date] {
	out := pgtype.Range[pgtype.Date]{
		Lower:     pgtype.Date{Time: r.Lower, Valid: true},
		LowerType: pgtype.Inclusive,
		UpperType: pgtype.Unbounded,
		Valid:     true,
	}
	if !r.OpenEnded() {
		out.Upper = pgtype.Date{Time: r.Upper.AddDate(0, 0, 1), Valid: true}
		out.UpperType = pgtype.Exclusive
	}
	return out
}

func fromPgRange(r pgtype.Range[pgtype.Date]) interval.DateRange {
	var out interval.DateRange
	if r.Lower.Valid {
		out.Lower = interval.DayOf(r.Lower.Time)
	}
	switch r.UpperType {
	case pgtype.Inclusive:
		out.Upper = interval.DayOf(r.Upper.Time)
	case pgtype.Exclusive:
		out.Upper = interval.DayOf(r.Upper.Time).AddDate(0, 0, -1)
	}
	return out
}

func pgTime(t interval.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60_000_000, Valid: true}
}

func fromPgTime(t pgtype.Time) interval.TimeOfDay {
	return interval.TimeOfDay(t.Microseconds / 60_000_000)
}

// employees

const employeeCols = `uid, emp_no, name, username, badge_id, acl`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.UID, &e.EmpNo, &e.Name, &e.Username, &e.BadgeID, &e.ACL)
	return e, mapNotFound(err)
}

func (q queries) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := q.db.Query(ctx, `SELECT `+employeeCols+` FROM employee ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q queries) GetEmployee(ctx context.Context, uid uuid.UUID) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, `SELECT `+employeeCols+` FROM employee WHERE uid = $1`, uid))
}

func (q queries) GetEmployeeByUsername(ctx context.Context, username string) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, `SELECT `+employeeCols+` FROM employee WHERE username = $1`, username))
}

func (q queries) SetACL(ctx context.Context, uids []uuid.UUID, acl string) error {
	_, err := q.db.Exec(ctx, `UPDATE employee SET acl = $1 WHERE uid = ANY($2)`, acl, uids)
	return err
}

// contracts

const contractCols = `id, pvid, employee_uid, occupancy::text, department, validity`

func scanContract(row pgx.Row) (Contract, error) {
	var (
		c        Contract
		occ      string
		validity pgtype.Range[pgtype.Date]
	)
	if err := row.Scan(&c.ID, &c.PVID, &c.EmployeeUID, &occ, &c.Department, &validity); err != nil {
		return Contract{}, mapNotFound(err)
	}
	var err error
	if c.Occupancy, err = decimal.NewFromString(occ); err != nil {
		return Contract{}, err
	}
	c.Validity = fromPgRange(validity)
	return c, nil
}

func (q queries) collectContracts(rows pgx.Rows) ([]Contract, error) {
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q queries) GetContractByPVID(ctx context.Context, pvid string) (Contract, error) {
	return scanContract(q.db.QueryRow(ctx,
		`SELECT `+contractCols+` FROM pv WHERE pvid = $1 ORDER BY lower(validity) DESC LIMIT 1`, pvid))
}

func (q queries) ListContractsByEmployee(ctx context.Context, uid uuid.UUID) ([]Contract, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+contractCols+` FROM pv WHERE employee_uid = $1 ORDER BY lower(validity)`, uid)
	if err != nil {
		return nil, err
	}
	return q.collectContracts(rows)
}

func (q queries) ListContractsByDepartmentPrefix(ctx context.Context, prefix string, overlap interval.DateRange) ([]Contract, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+contractCols+` FROM pv WHERE department LIKE $1 || '%' AND validity && $2 ORDER BY pvid`,
		prefix, pgRange(overlap))
	if err != nil {
		return nil, err
	}
	return q.collectContracts(rows)
}

func (q queries) ListContractsActiveOn(ctx context.Context, day time.Time) ([]Contract, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+contractCols+` FROM pv WHERE validity @> $1::date ORDER BY department, pvid`, day)
	if err != nil {
		return nil, err
	}
	return q.collectContracts(rows)
}

func (q queries) FindContract(ctx context.Context, employeeUID uuid.UUID, pvid string, occupancy decimal.Decimal, department string) (Contract, error) {
	return scanContract(q.db.QueryRow(ctx,
		`SELECT `+contractCols+` FROM pv
		 WHERE employee_uid = $1 AND pvid = $2 AND occupancy = $3::numeric AND department = $4
		 ORDER BY lower(validity) DESC LIMIT 1`,
		employeeUID, pvid, occupancy.String(), department))
}

func (q queries) InsertContract(ctx context.Context, c Contract) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO pv (pvid, employee_uid, occupancy, department, validity)
		 VALUES ($1, $2, $3::numeric, $4, $5) RETURNING id`,
		c.PVID, c.EmployeeUID, c.Occupancy.String(), c.Department, pgRange(c.Validity)).Scan(&id)
	return id, err
}

func (q queries) UpdateContractValidity(ctx context.Context, id int64, validity interval.DateRange) error {
	_, err := q.db.Exec(ctx, `UPDATE pv SET validity = $1 WHERE id = $2`, pgRange(validity), id)
	return err
}

func (q queries) DistinctDepartments(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT department FROM pv ORDER BY department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, err
		}
		out = append(out, dept)
	}
	return out, rows.Err()
}

// timetables

const timetableCols = `id, pv_id, validity, split,
	even_mon_from, even_mon_to, even_tue_from, even_tue_to, even_wed_from, even_wed_to,
	even_thu_from, even_thu_to, even_fri_from, even_fri_to,
	odd_mon_from, odd_mon_to, odd_tue_from, odd_tue_to, odd_wed_from, odd_wed_to,
	odd_thu_from, odd_thu_to, odd_fri_from, odd_fri_to`

func scanTimetable(row pgx.Row) (Timetable, error) {
	var (
		t        Timetable
		validity pgtype.Range[pgtype.Date]
		times    [20]pgtype.Time
	)
	dest := []any{&t.ID, &t.ContractID, &validity, &t.Split}
	for i := range times {
		dest = append(dest, &times[i])
	}
	if err := row.Scan(dest...); err != nil {
		return Timetable{}, mapNotFound(err)
	}
	t.Validity = fromPgRange(validity)
	for d := 0; d < 5; d++ {
		t.Even[d] = interval.TimeRange{From: fromPgTime(times[2*d]), To: fromPgTime(times[2*d+1])}
		t.Odd[d] = interval.TimeRange{From: fromPgTime(times[10+2*d]), To: fromPgTime(times[10+2*d+1])}
	}
	return t, nil
}

func (q queries) ListTimetables(ctx context.Context, contractID int64) ([]Timetable, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+timetableCols+` FROM timetable WHERE pv_id = $1 ORDER BY lower(validity)`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Timetable
	for rows.Next() {
		t, err := scanTimetable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q queries) CurrentTimetable(ctx context.Context, contractID int64, day time.Time) (Timetable, error) {
	return scanTimetable(q.db.QueryRow(ctx,
		`SELECT `+timetableCols+` FROM timetable WHERE pv_id = $1 AND validity @> $2::date`, contractID, day))
}

func (q queries) NarrowTimetableValidity(ctx context.Context, id int64, upper time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE timetable SET validity = daterange(lower(validity), $1::date, '[]') WHERE id = $2`, upper, id)
	return err
}

func (q queries) InsertTimetable(ctx context.Context, t Timetable) (int64, error) {
	args := []any{t.ContractID, pgRange(t.Validity), t.Split}
	for d := 0; d < 5; d++ {
		args = append(args, pgTime(t.Even[d].From), pgTime(t.Even[d].To))
	}
	for d := 0; d < 5; d++ {
		args = append(args, pgTime(t.Odd[d].From), pgTime(t.Odd[d].To))
	}
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO timetable (pv_id, validity, split,
			even_mon_from, even_mon_to, even_tue_from, even_tue_to, even_wed_from, even_wed_to,
			even_thu_from, even_thu_to, even_fri_from, even_fri_to,
			odd_mon_from, odd_mon_to, odd_tue_from, odd_tue_to, odd_wed_from, odd_wed_to,
			odd_thu_from, odd_thu_to, odd_fri_from, odd_fri_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		 RETURNING id`, args...).Scan(&id)
	return id, err
}

// presence

const presenceCols = `employee_uid, date, arrival, departure, mode, food_stamp`

func scanPresence(row pgx.Row) (Presence, error) {
	var (
		p                  Presence
		arrival, departure pgtype.Time
	)
	if err := row.Scan(&p.EmployeeUID, &p.Date, &arrival, &departure, &p.Mode, &p.FoodStamp); err != nil {
		return Presence{}, mapNotFound(err)
	}
	p.Date = interval.DayOf(p.Date)
	p.Arrival = fromPgTime(arrival)
	p.Departure = fromPgTime(departure)
	return p, nil
}

func (q queries) collectPresence(rows pgx.Rows) ([]Presence, error) {
	defer rows.Close()
	var out []Presence
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q queries) GetPresence(ctx context.Context, uid uuid.UUID, day time.Time) (Presence, error) {
	return scanPresence(q.db.QueryRow(ctx,
		`SELECT `+presenceCols+` FROM presence WHERE employee_uid = $1 AND date = $2::date`, uid, day))
}

func (q queries) ListPresenceRange(ctx context.Context, uid uuid.UUID, r interval.DateRange) ([]Presence, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+presenceCols+` FROM presence WHERE employee_uid = $1 AND $2::daterange @> date ORDER BY date`,
		uid, pgRange(r))
	if err != nil {
		return nil, err
	}
	return q.collectPresence(rows)
}

func (q queries) ListPresenceByDate(ctx context.Context, day time.Time) ([]Presence, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+presenceCols+` FROM presence WHERE date = $1::date`, day)
	if err != nil {
		return nil, err
	}
	return q.collectPresence(rows)
}

func (q queries) InsertPresence(ctx context.Context, p Presence) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO presence (employee_uid, date, arrival, departure, mode, food_stamp)
		 VALUES ($1, $2::date, $3, $4, $5, $6)`,
		p.EmployeeUID, p.Date, pgTime(p.Arrival), pgTime(p.Departure), string(p.Mode), p.FoodStamp)
	return err
}

func (q queries) UpdatePresence(ctx context.Context, p Presence) error {
	_, err := q.db.Exec(ctx,
		`UPDATE presence SET arrival = $3, departure = $4, mode = $5, food_stamp = $6
		 WHERE employee_uid = $1 AND date = $2::date`,
		p.EmployeeUID, p.Date, pgTime(p.Arrival), pgTime(p.Departure), string(p.Mode), p.FoodStamp)
	return err
}

// department policies

func (q queries) ListPolicies(ctx context.Context) (map[string]Policy, error) {
	rows, err := q.db.Query(ctx, `SELECT department, policy FROM dept_policy`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Policy)
	for rows.Next() {
		var (
			dept   string
			policy string
		)
		if err := rows.Scan(&dept, &policy); err != nil {
			return nil, err
		}
		out[dept] = Policy(policy)
	}
	return out, rows.Err()
}

func (q queries) UpsertPolicy(ctx context.Context, p DepartmentPolicy) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO dept_policy (department, policy) VALUES ($1, $2)
		 ON CONFLICT (department) DO UPDATE SET policy = EXCLUDED.policy`,
		p.Department, string(p.Policy))
	return err
}
