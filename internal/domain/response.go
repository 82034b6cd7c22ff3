package domain

import (
	"encoding/json"
	"time"
)

// Response is one encrypted questionnaire submission.
// PK: user_id, SK: questionnaire_version.
type Response struct {
	UserID               string    `json:"user_id" dynamodbav:"user_id"`
	QuestionnaireVersion string    `json:"questionnaire_version" dynamodbav:"questionnaire_version"`
	CampusID             string    `json:"campus_id" dynamodbav:"campus_id"`
	AnswersEncrypted     string    `json:"-" dynamodbav:"answers_encrypted"`
	ResponsesHash        string    `json:"responses_hash" dynamodbav:"responses_hash"`
	KeyID                string    `json:"key_id" dynamodbav:"key_id"`
	PhotoObject          string    `json:"-" dynamodbav:"photo_object,omitempty"`
	PhotoKeyID           string    `json:"-" dynamodbav:"photo_key_id,omitempty"`
	CreatedAt            time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt            time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SubmitResponseRequest is the body of a questionnaire submission.
type SubmitResponseRequest struct {
	Answers              json.RawMessage `json:"answers"`
	QuestionnaireVersion string          `json:"questionnaire_version"`
	Photo                *string         `json:"photo,omitempty"`
}

// DecryptedResponse is the admin view of a stored response.
// Answers is null when decryption failed.
type DecryptedResponse struct {
	UserID               string          `json:"user_id"`
	CampusID             string          `json:"campus_id"`
	QuestionnaireVersion string          `json:"questionnaire_version"`
	Answers              json.RawMessage `json:"answers"`
	ResponsesHash        string          `json:"responses_hash"`
	HashVerified         bool            `json:"hash_verified"`
	HasPhoto             bool            `json:"has_photo"`
	Photo                *string         `json:"photo,omitempty"`
	DecryptionError      bool            `json:"decryption_error,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ResponseFilter narrows an admin listing.
type ResponseFilter struct {
	CampusID     string
	UserID       string
	Limit        int
	Cursor       string
	IncludePhoto bool
}
