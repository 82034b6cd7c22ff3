package domain

import (
	"fmt"
	"time"
)

// OTP flows. Each flow keeps its own codes and rate-limit windows.
const (
	FlowStudent  = "student"
	FlowWaitlist = "waitlist"
)

const waitlistKeyPrefix = "waitlist:"

// OTPKey namespaces a normalized email for the given flow.
func OTPKey(flow, email string) string {
	if flow == FlowWaitlist {
		return waitlistKeyPrefix + email
	}
	return email
}

// OtpCode is one issued verification code.
// PK: key (namespaced email), SK: code_id (ULID, so newest sorts last).
// Only the bcrypt hash of the code is stored.
type OtpCode struct {
	Key       string    `json:"key" dynamodbav:"key"`
	CodeID    string    `json:"code_id" dynamodbav:"code_id"`
	CodeHash  string    `json:"-" dynamodbav:"code_hash"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	Used      bool      `json:"used" dynamodbav:"used"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	TTL       int64     `json:"-" dynamodbav:"ttl"` // DynamoDB TTL (Unix seconds)
}

// Active reports whether the code can still be redeemed at now.
func (c *OtpCode) Active(now time.Time) bool {
	return !c.Used && now.Unix() < c.ExpiresAt
}

// RemainingAttemptsMessage is the client message for a wrong code.
func RemainingAttemptsMessage(remaining int) string {
	if remaining == 1 {
		return "Invalid code. 1 attempt remaining."
	}
	return fmt.Sprintf("Invalid code. %d attempts remaining.", remaining)
}
