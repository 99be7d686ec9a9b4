package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claude/healthbridge/internal/models"
)

// Connect records an active device connection for a user. The partial unique
// index on (user_id, device_type) WHERE is_connected turns a duplicate
// connect into ErrAlreadyConnected.
func (db *DB) Connect(ctx context.Context, userID uuid.UUID, device models.ProviderKind, details json.RawMessage) (*models.DeviceConnection, error) {
	if details == nil {
		details = json.RawMessage(`{}`)
	}
	var c models.DeviceConnection
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO device_connections (id, user_id, device_type, is_connected, connection_details)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING id, user_id, device_type, is_connected, connection_details, created_at, updated_at, last_sync_at
	`, uuid.New(), userID, string(device), details).Scan(
		&c.ID, &c.UserID, &c.DeviceType, &c.IsConnected, &c.ConnectionDetails,
		&c.CreatedAt, &c.UpdatedAt, &c.LastSyncAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, fmt.Errorf("%w: %s", ErrAlreadyConnected, device)
			case "23503":
				return nil, ErrUserNotFound
			}
		}
		return nil, fmt.Errorf("connecting %s: %w", device, err)
	}
	return &c, nil
}

// Disconnect marks the active connection for (user, device) inactive.
func (db *DB) Disconnect(ctx context.Context, userID uuid.UUID, device models.ProviderKind) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE device_connections
		SET is_connected = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND device_type = $2 AND is_connected
	`, userID, string(device))
	if err != nil {
		return fmt.Errorf("disconnecting %s: %w", device, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotConnected, device)
	}
	return nil
}

// ActiveConnections returns the user's currently connected devices.
func (db *DB) ActiveConnections(ctx context.Context, userID uuid.UUID) ([]models.DeviceConnection, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, device_type, is_connected, connection_details, created_at, updated_at, last_sync_at
		FROM device_connections
		WHERE user_id = $1 AND is_connected
		ORDER BY device_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var conns []models.DeviceConnection
	for rows.Next() {
		var c models.DeviceConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.DeviceType, &c.IsConnected,
			&c.ConnectionDetails, &c.CreatedAt, &c.UpdatedAt, &c.LastSyncAt); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// HasActiveConnection reports whether the user has an active connection for
// the device type.
func (db *DB) HasActiveConnection(ctx context.Context, userID uuid.UUID, device models.ProviderKind) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM device_connections
			WHERE user_id = $1 AND device_type = $2 AND is_connected
		)
	`, userID, string(device)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking connection: %w", err)
	}
	return exists, nil
}

// TouchLastSync stamps the active connection's last_sync_at. A missing
// connection is not an error here; ingest does not require one.
func (db *DB) TouchLastSync(ctx context.Context, userID uuid.UUID, device models.ProviderKind, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE device_connections
		SET last_sync_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND device_type = $2 AND is_connected
	`, userID, string(device), at)
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	return nil
}
