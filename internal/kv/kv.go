package kv

import (
	"context"
	"errors"
)

// Keys used by the agent core.
const (
	KeyMessages  = "messages"
	KeyEmail     = "email"
	KeyDeviceID  = "device_id"
	KeyToken     = "token"
	KeyCompanyID = "company_id"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is durable per-key string storage. Writes to different keys are
// independent operations; there are no transactions across keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
