// Package hr adapts the external personnel system: contract records with
// occupancy and validity derived from an embedded structured payload.
package hr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenta/presenta/internal/attendance"
	"github.com/presenta/presenta/internal/interval"
)

// Client queries the personnel database.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClient constructs a Client.
func NewClient(pool *pgxpool.Pool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, logger: logger}
}

// Contracts returns one record per schedule element of every contract row
// of the employee. Each record's validity is clipped to the intersection of
// the contract dates and the element dates; inverted results are dropped
// and logged, never returned.
func (c *Client) Contracts(ctx context.Context, empNo string) ([]attendance.ContractRecord, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT oscpv, kod, dat_nast, dat_ukon, dalsi1_xml FROM pv WHERE oscpv LIKE $1 || '.%'`, empNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.ContractRecord
	for rows.Next() {
		var (
			pvid, dept      string
			started, ended  *time.Time
			schedulePayload string
		)
		if err := rows.Scan(&pvid, &dept, &started, &ended, &schedulePayload); err != nil {
			return nil, err
		}
		records, err := c.expand(pvid, dept, started, ended, schedulePayload)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, rows.Err()
}

func (c *Client) expand(pvid, dept string, started, ended *time.Time, payload string) ([]attendance.ContractRecord, error) {
	elements, err := parseWeeklyHours(payload)
	if err != nil {
		return nil, err
	}
	contractStart, contractEnd := time.Time{}, time.Time{}
	if started != nil {
		contractStart = *started
	}
	if ended != nil {
		contractEnd = *ended
	}

	var out []attendance.ContractRecord
	for _, el := range elements {
		occupancy, err := el.occupancy()
		if err != nil {
			return nil, err
		}
		elFrom, err := parseSourceDate(el.From)
		if err != nil {
			return nil, err
		}
		elTo, err := parseSourceDate(el.To)
		if err != nil {
			return nil, err
		}
		validity := interval.NewDateRange(laterOf(contractStart, elFrom), earlierOf(contractEnd, elTo))
		if validity.IsEmpty() {
			c.logger.Warn("dropping inverted contract validity",
				slog.String("pvid", pvid), slog.String("validity", validity.String()))
			continue
		}
		out = append(out, attendance.ContractRecord{
			PVID:       pvid,
			EmpNo:      strings.SplitN(pvid, ".", 2)[0],
			Occupancy:  occupancy,
			Department: dept,
			Validity:   validity,
		})
	}
	return out, nil
}
