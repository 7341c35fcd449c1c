package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pushdeck/agent/internal/device"
	"github.com/pushdeck/agent/internal/kv"
)

// Transition errors. Handlers map these to HTTP statuses.
var (
	// ErrInvalidEmail: the email failed the format check. Never retried
	// automatically.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrCodeSend: the provider could not issue a code.
	ErrCodeSend = errors.New("failed to send code")
	// ErrMissingEmail: VerifyCode was called with no persisted email.
	ErrMissingEmail = errors.New("no email on record, request a code first")
	// ErrInvalidCode: the provider rejected the code as invalid or expired.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrVerify: the provider itself failed during verification.
	ErrVerify = errors.New("code verification failed")
	// ErrNotVerified: BindDevice was called before a successful VerifyCode.
	ErrNotVerified = errors.New("code not verified")
	// ErrRegistration: the backend did not confirm the device registration.
	ErrRegistration = errors.New("device registration failed")
	// ErrInFlight: another transition is still running on this controller.
	ErrInFlight = errors.New("authentication already in progress")
	// ErrBypassDisabled: the review bypass is not compiled into this build.
	ErrBypassDisabled = errors.New("review bypass not available")
)

// emailPattern is deliberately loose: local@domain.tld, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Flow drives the login handshake:
//
//	Unauthenticated -> CodeRequested -> CodeVerified -> DeviceRegistered
//
// A failed transition leaves the controller in the state it failed from;
// nothing is retried automatically. The controller is single-flight: while
// one transition's work is in flight, any other transition call returns
// ErrInFlight instead of queueing.
type Flow struct {
	provider  SessionProvider
	devices   device.IdentityProvider
	registrar Registrar
	store     kv.Store

	deviceTimeout time.Duration
	review        ReviewCredentials

	busy     atomic.Bool
	verified atomic.Bool
}

// ReviewCredentials are the static app-store review credentials. They are
// only consulted in builds made with the review tag.
type ReviewCredentials struct {
	Email string
	Code  string
}

// NewFlow creates a controller. deviceTimeout bounds the device-identity
// wait; zero means device.DefaultAwaitTimeout.
func NewFlow(provider SessionProvider, devices device.IdentityProvider, registrar Registrar, store kv.Store, deviceTimeout time.Duration, review ReviewCredentials) *Flow {
	return &Flow{
		provider:      provider,
		devices:       devices,
		registrar:     registrar,
		store:         store,
		deviceTimeout: deviceTimeout,
		review:        review,
	}
}

// acquire claims the single-flight slot.
func (f *Flow) acquire() error {
	if !f.busy.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	return nil
}

func (f *Flow) release() {
	f.busy.Store(false)
}

// RequestCode validates the email, asks the provider to send a one-time
// code and persists the email for the verify step.
func (f *Flow) RequestCode(ctx context.Context, email string) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	if err := f.provider.IssueCode(ctx, email); err != nil {
		logMaskedEmail(email, "issue code failed: %v", err)
		return fmt.Errorf("%w: %v", ErrCodeSend, err)
	}

	if err := f.store.Set(ctx, kv.KeyEmail, email); err != nil {
		return fmt.Errorf("persist email: %w", err)
	}
	return nil
}

// VerifyCode checks the emailed code against the persisted email. On
// success the controller may proceed to BindDevice.
func (f *Flow) VerifyCode(ctx context.Context, code string) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	email, err := f.store.Get(ctx, kv.KeyEmail)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrMissingEmail
		}
		return fmt.Errorf("read email: %w", err)
	}

	session, err := f.provider.VerifyCode(ctx, email, code)
	if err != nil {
		logMaskedEmail(email, "verify code failed: %v", err)
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if session == nil {
		return ErrInvalidCode
	}

	f.verified.Store(true)
	return nil
}

// BindDevice resolves the push device identity, persists it and registers
// (email, device id) with the backend. The device id is only ever written
// after the identity lookup succeeded, so a timeout leaves no device_id
// behind. Registration runs after the persist; on a registration failure
// the device id stays on record and the retry reuses it.
func (f *Flow) BindDevice(ctx context.Context) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if !f.verified.Load() {
		return ErrNotVerified
	}

	email, err := f.store.Get(ctx, kv.KeyEmail)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrMissingEmail
		}
		return fmt.Errorf("read email: %w", err)
	}

	deviceID, err := f.bindIdentity(ctx, email)
	if err != nil {
		return err
	}

	if err := f.registrar.Register(ctx, email, deviceID, f.companyID(ctx)); err != nil {
		logMaskedEmail(email, "backend registration failed: %v", err)
		return fmt.Errorf("%w: %v", ErrRegistration, err)
	}

	f.verified.Store(false)
	return nil
}

// bindIdentity acquires the device identity and persists it.
func (f *Flow) bindIdentity(ctx context.Context, email string) (string, error) {
	deviceID, err := device.Await(ctx, f.devices, f.deviceTimeout)
	if err != nil {
		logMaskedEmail(email, "device identity: %v", err)
		return "", err
	}

	if err := f.store.Set(ctx, kv.KeyDeviceID, deviceID); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return deviceID, nil
}

func (f *Flow) companyID(ctx context.Context) string {
	companyID, err := f.store.Get(ctx, kv.KeyCompanyID)
	if err != nil {
		return ""
	}
	return companyID
}

// LoggedIn reports whether a device_id is on record. Its presence is the
// session marker the rest of the agent keys on.
func (f *Flow) LoggedIn(ctx context.Context) bool {
	_, err := f.store.Get(ctx, kv.KeyDeviceID)
	return err == nil
}

// Logout clears the persisted session markers. The message cache is cleared
// separately by the caller that owns it.
func (f *Flow) Logout(ctx context.Context) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	f.verified.Store(false)
	for _, key := range []string{kv.KeyDeviceID, kv.KeyEmail, kv.KeyToken} {
		if err := f.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// logMaskedEmail logs with the email's local part masked.
func logMaskedEmail(email, format string, args ...any) {
	log.Printf("auth ["+maskEmail(email)+"]: "+format, args...)
}

// maskEmail keeps the first character and the domain (e.g. u***@test.com).
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
