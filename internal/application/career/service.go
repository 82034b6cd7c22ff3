package career

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/mail"
	"github.com/justone-api/internal/pkg/emailaddr"
	"github.com/justone-api/internal/pkg/id"
	"github.com/justone-api/internal/pkg/logger"
	"github.com/justone-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// MaxResumeBytes caps the decoded resume size.
const MaxResumeBytes = 5 << 20

const EventApplicationSubmitted = "career_application.submitted"

var resumeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

type ApplicationStore interface {
	Put(ctx context.Context, a *domain.CareerApplication) error
}

type FileStore interface {
	PutBase64(ctx context.Context, prefix, filename, contentType, base64Data string, maxBytes int64) (*file.Stored, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType, subject string, payload interface{}) error
}

type ApplyResult struct {
	Success       bool   `json:"success"`
	ApplicationID string `json:"application_id"`
}

type Service interface {
	Apply(ctx context.Context, req domain.CareerApplicationRequest) (*ApplyResult, error)
}

type ServiceDeps struct {
	ApplicationRepo ApplicationStore
	Files           FileStore
	Mailer          mail.Sender
	Publisher       Publisher // nil disables notifications
	From            string
	FromName        string
	Inbox           string
}

type service struct {
	repo      ApplicationStore
	files     FileStore
	mailer    mail.Sender
	publisher Publisher
	from      string
	fromName  string
	inbox     string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.ApplicationRepo,
		files:     deps.Files,
		mailer:    deps.Mailer,
		publisher: deps.Publisher,
		from:      deps.From,
		fromName:  deps.FromName,
		inbox:     deps.Inbox,
	}
}

var errInvalidResume = domain.NewError(domain.ErrBadRequest, domain.CodeInvalidResume,
	"Resume must be a PDF or Word document under 5 MB.")

func (s *service) Apply(ctx context.Context, req domain.CareerApplicationRequest) (*ApplyResult, error) {
	req.Email = emailaddr.Normalize(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidRequest, "Missing or invalid fields: "+err.Error())
	}

	app := &domain.CareerApplication{
		ApplicationID:    id.New(),
		FullName:         strings.TrimSpace(req.FullName),
		University:       strings.TrimSpace(req.University),
		Year:             strings.TrimSpace(req.Year),
		Major:            strings.TrimSpace(req.Major),
		Email:            req.Email,
		WhyJustOne:       req.WhyJustOne,
		LinkedinOrResume: req.LinkedinOrResume,
		CreatedAt:        time.Now().UTC(),
	}

	msg := &mail.Message{
		FromName: s.fromName,
		From:     s.from,
		To:       []string{s.inbox},
		ReplyTo:  app.Email,
		Subject:  mail.CareerSubject(app.FullName, app.University),
	}

	if req.Resume != nil {
		stored, err := s.archiveResume(ctx, app.ApplicationID, req.Resume)
		if err != nil {
			return nil, err
		}
		app.ResumeObject = stored.Object
		app.ResumeName = stored.Name
		app.ResumeHash = stored.Hash
		msg.Attachments = []mail.Attachment{{Filename: stored.Name, ContentType: stored.ContentType, Data: stored.Data}}
	}

	html, err := mail.Render("career", app)
	if err != nil {
		return nil, err
	}
	msg.HTML = html
	sendErr := s.mailer.Send(ctx, msg)
	app.EmailSent = sendErr == nil

	if err := s.repo.Put(ctx, app); err != nil {
		logger.Error(ctx, "career application not recorded", zap.String("application_id", app.ApplicationID), zap.Error(err))
		if sendErr == nil {
			return &ApplyResult{Success: true, ApplicationID: app.ApplicationID}, nil
		}
		return nil, fmt.Errorf("record application: %w", err)
	}
	if sendErr != nil {
		logger.Error(ctx, "career email failed", zap.String("application_id", app.ApplicationID), zap.Error(sendErr))
		return nil, domain.NewError(domain.ErrInternal, domain.CodeEmailFailed, "Failed to send application. Please try again.")
	}

	s.notify(ctx, app)
	logger.Info(ctx, "career application received", zap.String("application_id", app.ApplicationID))
	return &ApplyResult{Success: true, ApplicationID: app.ApplicationID}, nil
}

func (s *service) archiveResume(ctx context.Context, applicationID string, r *domain.Resume) (*file.Stored, error) {
	contentType := strings.ToLower(strings.TrimSpace(r.Type))
	if !resumeTypes[contentType] || !resumeTypes[file.ContentTypeFromName(r.Filename)] {
		return nil, errInvalidResume
	}
	stored, err := s.files.PutBase64(ctx, "careers/"+applicationID, r.Filename, contentType, r.Base64, MaxResumeBytes)
	if err != nil {
		if errors.Is(err, domain.ErrBadRequest) {
			return nil, errInvalidResume
		}
		return nil, fmt.Errorf("archive resume: %w", err)
	}
	return stored, nil
}

func (s *service) notify(ctx context.Context, app *domain.CareerApplication) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, EventApplicationSubmitted, "New career application", app); err != nil {
		logger.Warn(ctx, "career notification failed", zap.String("application_id", app.ApplicationID), zap.Error(err))
	}
}
