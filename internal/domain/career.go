package domain

import "time"

// CareerApplication is an archived job application. PK: application_id.
type CareerApplication struct {
	ApplicationID    string    `json:"id" dynamodbav:"application_id"`
	FullName         string    `json:"full_name" dynamodbav:"full_name"`
	University       string    `json:"university" dynamodbav:"university"`
	Year             string    `json:"year" dynamodbav:"year"`
	Major            string    `json:"major" dynamodbav:"major"`
	Email            string    `json:"email" dynamodbav:"email"`
	WhyJustOne       string    `json:"why_justone" dynamodbav:"why_justone"`
	LinkedinOrResume string    `json:"linkedin_or_resume,omitempty" dynamodbav:"linkedin_or_resume,omitempty"`
	ResumeObject     string    `json:"-" dynamodbav:"resume_object,omitempty"`
	ResumeName       string    `json:"resume_name,omitempty" dynamodbav:"resume_name,omitempty"`
	ResumeHash       string    `json:"-" dynamodbav:"resume_hash,omitempty"`
	EmailSent        bool      `json:"email_sent" dynamodbav:"email_sent"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
}

// CareerApplicationRequest is the public application form.
type CareerApplicationRequest struct {
	FullName         string  `json:"full_name" validate:"required,max=200"`
	University       string  `json:"university" validate:"required,max=200"`
	Year             string  `json:"year" validate:"required,max=50"`
	Major            string  `json:"major" validate:"required,max=200"`
	Email            string  `json:"email" validate:"required,email"`
	WhyJustOne       string  `json:"why_justone" validate:"required,max=5000"`
	LinkedinOrResume string  `json:"linkedin_or_resume" validate:"omitempty,url"`
	Resume           *Resume `json:"resume,omitempty"`
}

// Resume is a base64 embedded attachment.
type Resume struct {
	Filename string `json:"filename" validate:"required"`
	Base64   string `json:"base64" validate:"required"`
	Type     string `json:"type" validate:"required"`
}
