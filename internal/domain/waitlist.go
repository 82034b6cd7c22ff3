package domain

import "time"

const (
	WaitlistSourceOTP   = "otp"
	WaitlistSourceEmail = "email"
)

// WaitlistEntry records an email that joined the waitlist. PK: email.
type WaitlistEntry struct {
	Email     string    `json:"email" dynamodbav:"email"`
	UserID    string    `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	CampusID  string    `json:"campus_id,omitempty" dynamodbav:"campus_id,omitempty"`
	Source    string    `json:"source" dynamodbav:"source"`
	Verified  bool      `json:"verified" dynamodbav:"verified"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
