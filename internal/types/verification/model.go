package verification

import "time"

type State string

const (
	StateUnverified    State = "unverified"
	StateCodeRequested State = "code_requested"
	StateVerified      State = "verified"
)

// Session tracks one phone number through the OTP flow. Version increases on
// every stored mutation and is the compare-and-swap token.
type Session struct {
	Number     string     `json:"number"`
	State      State      `json:"state"`
	Code       string     `json:"-"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	Attempts   int        `json:"attempts"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Bypassed   bool       `json:"bypassed"`
	Version    int64      `json:"-"`
}

type DispatchResult struct {
	Number          string    `json:"mobile"`
	Sent            bool      `json:"success"`
	AlreadyVerified bool      `json:"alreadyVerified,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt"`
	DevCode         string    `json:"devOtp,omitempty"`
}

type StatusDTO struct {
	Number   string `json:"mobile"`
	State    State  `json:"state"`
	Verified bool   `json:"verified"`
}
