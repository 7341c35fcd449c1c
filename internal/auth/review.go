//go:build review

package auth

import (
	"context"
	"fmt"

	"github.com/pushdeck/agent/internal/kv"
)

// ReviewBypass lets an app-store reviewer reach authenticated content
// without a live OTP round-trip. It exists only in builds made with the
// review tag; production builds compile the stub in review_off.go instead.
// The static credentials come from configuration, the OTP provider is never
// contacted, and the device identity is still acquired and persisted the
// normal way.
func (f *Flow) ReviewBypass(ctx context.Context, email, code string) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if f.review.Email == "" || email != f.review.Email || code != f.review.Code {
		return ErrInvalidCode
	}

	if err := f.store.Set(ctx, kv.KeyEmail, email); err != nil {
		return fmt.Errorf("persist email: %w", err)
	}

	deviceID, err := f.bindIdentity(ctx, email)
	if err != nil {
		return err
	}

	if f.registrar != nil {
		if err := f.registrar.Register(ctx, email, deviceID, f.companyID(ctx)); err != nil {
			logMaskedEmail(email, "backend registration failed: %v", err)
			return fmt.Errorf("%w: %v", ErrRegistration, err)
		}
	}
	return nil
}
