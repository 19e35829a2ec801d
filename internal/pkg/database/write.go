package database

import (
	"context"
	"encoding/json"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// RegisterDevice upserts the device row so history rows always have a
// matching device. Rediscovery refreshes the name and type in place.
func (db *Database) RegisterDevice(ctx context.Context, device model.Device) error {
	_, err := db.conn.Exec(ctx, `
		INSERT INTO Device (key, name, device_type, page, element_index)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, device_type = EXCLUDED.device_type;`,
		device.Key(), device.Name, device.Type.String(), device.Page, device.Index)
	return err
}

// PublishChange appends one row to the state history. The state is stored
// as its tagged JSON envelope so readers can decode it without knowing the
// device type up front.
func (db *Database) PublishChange(ctx context.Context, change model.StateChange) error {
	payload, err := json.Marshal(change.State)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(ctx, `
		INSERT INTO StateChange (device_key, device_name, device_type, state, time_stamp)
		VALUES ($1, $2, $3, $4, $5);`,
		change.Key, change.Name, change.Type.String(), payload, change.Timestamp)
	return err
}
