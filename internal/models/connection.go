package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is an account row in the relational store.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceConnection links a user to a provider platform. At most one active
// connection may exist per (user, device type); the store enforces that with
// a partial unique index.
type DeviceConnection struct {
	ID                uuid.UUID       `json:"connection_id"`
	UserID            uuid.UUID       `json:"user_id"`
	DeviceType        ProviderKind    `json:"device_type"`
	IsConnected       bool            `json:"is_connected"`
	ConnectionDetails json.RawMessage `json:"connection_details,omitempty"`
	CreatedAt         time.Time       `json:"connected_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	LastSyncAt        *time.Time      `json:"last_sync_at,omitempty"`
}
