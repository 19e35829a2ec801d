package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/anicoll/knx-integration/internal/pkg/database/migration"
	"github.com/anicoll/knx-integration/internal/pkg/model"
)

func setupDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("knx"),
		tcpostgres.WithUsername("knx"),
		tcpostgres.WithPassword("knx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migration.Migrate(dsn, "../../../migrations"))

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)

	db := NewDatabase(conn)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestStateHistoryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	db := setupDatabase(t)

	device := model.NewDevice(model.Descriptor{
		ID:    "Single_1",
		Name:  "Deckenlicht",
		Page:  "02",
		Index: "3",
		Type:  model.DeviceTypeLight,
	})
	require.NoError(t, db.RegisterDevice(ctx, device))
	// Upsert keeps rediscovery idempotent.
	require.NoError(t, db.RegisterDevice(ctx, device))

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	for i, on := range []bool{true, false, true} {
		change := model.StateChange{
			Key:       device.Key(),
			Name:      device.Name,
			Type:      device.Type,
			State:     model.OnOff{On: on},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.PublishChange(ctx, change))
	}

	history, err := db.GetStateHistory(ctx, device.Key(), nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, model.OnOff{On: true}, history[0].State)
	require.Equal(t, device.Key(), history[0].Key)
	require.True(t, history[0].Timestamp.After(history[1].Timestamp))

	latest, err := db.GetLatestStates(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, model.OnOff{On: true}, latest[0].State)
}

func TestStateHistoryWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	db := setupDatabase(t)

	device := model.NewDevice(model.Descriptor{
		ID:    "Temp_1",
		Name:  "Temperatur Bad",
		Page:  "03",
		Index: "7",
		Type:  model.DeviceTypeTemperatureSensor,
	})
	require.NoError(t, db.RegisterDevice(ctx, device))

	old := model.StateChange{
		Key:       device.Key(),
		Name:      device.Name,
		Type:      device.Type,
		State:     model.Temperature{Celsius: 19.5},
		Timestamp: time.Now().AddDate(0, 0, -10),
	}
	recent := old
	recent.State = model.Temperature{Celsius: 21.0}
	recent.Timestamp = time.Now().Add(-time.Minute)
	require.NoError(t, db.PublishChange(ctx, old))
	require.NoError(t, db.PublishChange(ctx, recent))

	// Default window covers the last two days only.
	history, err := db.GetStateHistory(ctx, device.Key(), nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, model.Temperature{Celsius: 21.0}, history[0].State)

	require.NoError(t, db.Cleanup(ctx, 7*24*time.Hour))

	from := time.Now().AddDate(0, 0, -30)
	to := time.Now()
	history, err = db.GetStateHistory(ctx, device.Key(), &from, &to)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
