package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	SubjectOTP      = "Your JustOne verification code"
	SubjectWelcome  = "Welcome to JustOne"
	SubjectWaitlist = "You're on the JustOne waitlist"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; background: #faf8f5; padding: 40px 20px;">
<div style="max-width: 480px; margin: 0 auto; background: #ffffff; padding: 40px; border-radius: 8px;">
{{template "content" .}}
<p style="color: #7A2E3A;">- JustOne</p>
</div>
</body>
</html>{{end}}`

var templates = map[string]string{
	"otp": `{{define "content"}}
<h1 style="color: #1a1a1a; font-weight: normal;">Your verification code</h1>
<p style="color: #666;">Enter this code to verify your {{.CampusName}} email:</p>
<p style="font-size: 32px; letter-spacing: 8px; color: #1a1a1a; text-align: center;">{{.Code}}</p>
<p style="color: #666;">This code expires in {{.ExpiresInMinutes}} minutes.</p>
<p style="color: #999; font-size: 13px;">If you didn't request this code, you can safely ignore this email.</p>
{{end}}`,
	"welcome": `{{define "content"}}
<h1 style="color: #1a1a1a; font-weight: normal;">Welcome to JustOne</h1>
<p style="color: #666;">Your email has been verified. You're now ready to complete the questionnaire and find your meaningful connection.</p>
<p style="color: #666;">This isn't about swiping through endless options. It's about depth, intention, and finding someone who truly aligns with who you are.</p>
<p style="font-size: 14px; color: #999;">Take your time with the questionnaire. Your honest answers will help us find someone worth meeting.</p>
{{end}}`,
	"waitlist": `{{define "content"}}
<h1 style="color: #1a1a1a; font-weight: normal;">You're on the list.</h1>
<p style="color: #666;">Thank you for your interest in JustOne. We're building something thoughtful for meaningful connections on campus.</p>
<p style="color: #666;">We'll email you when the questionnaire opens for your campus. No spam, no noise. Just one message when it matters.</p>
<p style="font-size: 14px; color: #999;">In the meantime, take a breath. Good things take time.</p>
{{end}}`,
	"career": `{{define "content"}}
<h1 style="color: #1a1a1a; font-weight: normal; font-size: 24px;">New Marketing Intern Application</h1>
<p><strong>Name:</strong> {{.FullName}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>University:</strong> {{.University}}</p>
<p><strong>Year:</strong> {{.Year}}</p>
<p><strong>Major:</strong> {{.Major}}</p>
{{if .LinkedinOrResume}}<p><strong>LinkedIn/Resume:</strong> <a href="{{.LinkedinOrResume}}" style="color: #7A2E3A;">{{.LinkedinOrResume}}</a></p>{{end}}
{{if .ResumeName}}<p><strong>Attached resume:</strong> {{.ResumeName}}</p>{{end}}
<h2 style="font-size: 16px;">Why JustOne?</h2>
<p style="color: #333; white-space: pre-wrap;">{{.WhyJustOne}}</p>
<p style="color: #999; font-size: 13px;">This application was submitted through the JustOne careers page.</p>
{{end}}`,
}

var parsed = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(templates))
	for name, body := range templates {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}()

// OTPData fills the verification code email.
type OTPData struct {
	Code             string
	CampusName       string
	ExpiresInMinutes int
}

// Render executes the named template ("otp", "welcome", "waitlist", "career") with data.
func Render(name string, data interface{}) (string, error) {
	t, ok := parsed[name]
	if !ok {
		return "", fmt.Errorf("unknown mail template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// CareerSubject is the inbox subject line for an application.
func CareerSubject(fullName, university string) string {
	return fmt.Sprintf("Marketing Intern Application: %s (%s)", fullName, university)
}
