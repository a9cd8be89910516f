package entities

import "time"

// Tenant is the isolation boundary. Every flow, user, session and message
// belongs to exactly one tenant.
type Tenant struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Slug                  string    `json:"slug"`
	Timezone              string    `json:"timezone"`
	DefaultFlowID         string    `json:"default_flow_id,omitempty"`
	NewUserFlowID         string    `json:"new_user_flow_id,omitempty"`
	KnownUserFlowID       string    `json:"known_user_flow_id,omitempty"`
	WelcomeMessageNew     string    `json:"welcome_message_new,omitempty"`
	WelcomeMessageKnown   string    `json:"welcome_message_known,omitempty"`
	ResetKeyword          string    `json:"reset_keyword"`
	SessionTimeoutMinutes int       `json:"session_timeout_minutes"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// SessionTimeout returns the tenant session window, falling back to the
// given default when the tenant has none configured.
func (t *Tenant) SessionTimeout(fallbackMinutes int) time.Duration {
	minutes := t.SessionTimeoutMinutes
	if minutes <= 0 {
		minutes = fallbackMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// WhatsAppAccount holds the per-tenant credentials for one Meta Cloud API
// phone number. The engine treats the token as opaque.
type WhatsAppAccount struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	PhoneNumber        string    `json:"phone_number"`
	PhoneNumberID      string    `json:"phone_number_id"`
	BusinessAccountID  string    `json:"business_account_id"`
	AccessToken        string    `json:"-"`
	WebhookVerifyToken string    `json:"-"`
	AppSecret          string    `json:"-"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}
