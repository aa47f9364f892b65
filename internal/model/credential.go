package model

import "time"

// Access levels. Lower numbers pass more checks because admission compares
// level <= required, but each level is meant for its own set of operations:
//
//	0  business administration and dashboard reads
//	1  device provisioning by employees (configurator)
//	2  event submission by a single security device
const (
	LevelBusinessAdmin = 0
	LevelProvisioning  = 1
	LevelDevice        = 2
)

// Credential is an API key record. Only the SHA-256 hash of the secret is stored.
type Credential struct {
	ID          int64      `json:"id"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"key_prefix"`
	AccessLevel int        `json:"access_level"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}
