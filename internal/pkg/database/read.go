package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// GetStateHistory returns the recorded state changes for one device, newest
// first. A nil bound defaults to the last two days.
func (db *Database) GetStateHistory(ctx context.Context, key string, from, to *time.Time) ([]model.StateChange, error) {
	if from == nil || to == nil {
		from = func() *time.Time {
			t := time.Now().AddDate(0, 0, -2)
			return &t
		}()
		to = func() *time.Time {
			t := time.Now()
			return &t
		}()
	}
	const query = `
	SELECT device_key, device_name, device_type, state, time_stamp
	FROM StateChange
	WHERE device_key = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query, key, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStateChanges(rows)
}

// GetLatestStates returns the most recent recorded state per device.
func (db *Database) GetLatestStates(ctx context.Context) ([]model.StateChange, error) {
	const query = `
	SELECT DISTINCT ON (device_key) device_key, device_name, device_type, state, time_stamp
	FROM StateChange
	ORDER BY device_key, time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStateChanges(rows)
}

func scanStateChanges(rows pgx.Rows) ([]model.StateChange, error) {
	var changes []model.StateChange
	for rows.Next() {
		var (
			change  model.StateChange
			dt      string
			payload []byte
		)
		if err := rows.Scan(&change.Key, &change.Name, &dt, &payload, &change.Timestamp); err != nil {
			return nil, err
		}
		change.Type = model.DeviceType(dt)
		state, err := model.UnmarshalState(payload)
		if err != nil {
			return nil, err
		}
		change.State = state
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return changes, nil
		}
		return nil, err
	}

	return changes, nil
}
