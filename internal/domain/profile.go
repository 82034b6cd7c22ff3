package domain

import "time"

// Profile links an account to a campus and its verification state. PK: user_id.
type Profile struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	CampusID  string    `json:"campus_id" dynamodbav:"campus_id"`
	Verified  bool      `json:"verified" dynamodbav:"verified"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
