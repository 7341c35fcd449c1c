package auth

import (
	"context"

	"github.com/pushdeck/agent/internal/model"
)

// SessionProvider is the hosted OTP service: it emails one-time codes and
// verifies them. VerifyCode returns (nil, nil) for a code the provider
// rejected as invalid or expired; an error means the provider itself failed.
type SessionProvider interface {
	IssueCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*model.Session, error)
}

// Registrar binds an email-verified session and device identity to a backend
// user record. Implemented by the backend registration client.
type Registrar interface {
	Register(ctx context.Context, email, deviceID, companyID string) error
}
