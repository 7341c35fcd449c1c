package model

import (
	"time"
)

// Message is a notification stored in the local inbox.
type Message struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	ReceivedAt time.Time `json:"received_at"`
}

// Notification is a raw inbound push payload before it is stored.
// ProviderID is the push provider's message identifier; it may be empty,
// in which case the inbox assigns a local identifier.
type Notification struct {
	ProviderID string `json:"provider_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// Session is the authenticated session produced by OTP verification.
type Session struct {
	AccessToken string
	Email       string
	ExpiresAt   time.Time
}

// NotificationSettings holds the per-category notification preferences
// kept on the backend for one user. JSON field names follow the backend's
// wire format.
type NotificationSettings struct {
	BankBilletGenerated bool `json:"bankBillet_generated"`
	BankBilletPaid      bool `json:"bankBillet_payed"`
	PixGenerated        bool `json:"pix_generated"`
	PixPaid             bool `json:"pix_payed"`
	CreditCardApproved  bool `json:"creditCard_approved"`
	CreditCardRefused   bool `json:"creditCard_recused"`
}

// Company is the white-label tenant record served by the branding backend.
type Company struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	TertiaryColor  string `json:"tertiaryColor"`
	LogoURL        string `json:"logoUrl"`
}
