package career

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Put(ctx context.Context, a *domain.CareerApplication) error {
	return m.Called(ctx, a).Error(0)
}

type mockFiles struct{ mock.Mock }

func (m *mockFiles) PutBase64(ctx context.Context, prefix, filename, contentType, data string, maxBytes int64) (*file.Stored, error) {
	args := m.Called(ctx, prefix, filename, contentType, data, maxBytes)
	s, _ := args.Get(0).(*file.Stored)
	return s, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, msg *mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, eventType, subject string, payload interface{}) error {
	return m.Called(ctx, eventType, subject, payload).Error(0)
}

func newSvc(repo *mockRepo, files *mockFiles, ml *mockMailer, pub Publisher) Service {
	return NewService(ServiceDeps{
		ApplicationRepo: repo,
		Files:           files,
		Mailer:          ml,
		Publisher:       pub,
		From:            "careers@justonematch.in",
		FromName:        "JustOne Careers",
		Inbox:           "support@justonematch.in",
	})
}

func validReq() domain.CareerApplicationRequest {
	return domain.CareerApplicationRequest{
		FullName:   "Asha Rao",
		University: "Ashoka University",
		Year:       "2nd",
		Major:      "Economics",
		Email:      "Asha@Ashoka.edu.in",
		WhyJustOne: "I like <b>thoughtful</b> products.",
	}
}

func TestApply_SendsToInboxWithReplyTo(t *testing.T) {
	repo, files, ml, pub := &mockRepo{}, &mockFiles{}, &mockMailer{}, &mockPublisher{}
	ml.On("Send", mock.Anything, mock.MatchedBy(func(m *mail.Message) bool {
		return m.To[0] == "support@justonematch.in" &&
			m.ReplyTo == "asha@ashoka.edu.in" &&
			m.From == "careers@justonematch.in" &&
			m.Subject == "Marketing Intern Application: Asha Rao (Ashoka University)" &&
			len(m.Attachments) == 0
	})).Return(nil)
	repo.On("Put", mock.Anything, mock.MatchedBy(func(a *domain.CareerApplication) bool { return a.EmailSent })).Return(nil)
	pub.On("Publish", mock.Anything, EventApplicationSubmitted, mock.Anything, mock.Anything).Return(nil)

	res, err := newSvc(repo, files, ml, pub).Apply(context.Background(), validReq())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ApplicationID)
	ml.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestApply_AttachesArchivedResume(t *testing.T) {
	repo, files, ml := &mockRepo{}, &mockFiles{}, &mockMailer{}
	req := validReq()
	data := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	req.Resume = &domain.Resume{Filename: "cv.pdf", Base64: data, Type: "application/pdf"}

	files.On("PutBase64", mock.Anything, mock.MatchedBy(func(p string) bool { return len(p) > len("careers/") }),
		"cv.pdf", "application/pdf", data, int64(MaxResumeBytes)).
		Return(&file.Stored{Object: "careers/x/cv.pdf", Name: "cv.pdf", ContentType: "application/pdf", Hash: "h", Data: []byte("%PDF-1.4")}, nil)
	ml.On("Send", mock.Anything, mock.MatchedBy(func(m *mail.Message) bool {
		return len(m.Attachments) == 1 && m.Attachments[0].Filename == "cv.pdf" && string(m.Attachments[0].Data) == "%PDF-1.4"
	})).Return(nil)
	repo.On("Put", mock.Anything, mock.MatchedBy(func(a *domain.CareerApplication) bool {
		return a.ResumeObject == "careers/x/cv.pdf" && a.ResumeName == "cv.pdf"
	})).Return(nil)

	_, err := newSvc(repo, files, ml, nil).Apply(context.Background(), req)

	require.NoError(t, err)
	files.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestApply_RejectsResumeType(t *testing.T) {
	for _, r := range []*domain.Resume{
		{Filename: "cv.png", Base64: "AAAA", Type: "image/png"},
		{Filename: "cv.exe", Base64: "AAAA", Type: "application/pdf"},
	} {
		req := validReq()
		req.Resume = r
		files := &mockFiles{}

		_, err := newSvc(&mockRepo{}, files, &mockMailer{}, nil).Apply(context.Background(), req)

		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeInvalidResume, de.Code)
		files.AssertNotCalled(t, "PutBase64", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestApply_ResumeTooLarge(t *testing.T) {
	req := validReq()
	req.Resume = &domain.Resume{Filename: "cv.pdf", Base64: "AAAA", Type: "application/pdf"}
	files := &mockFiles{}
	files.On("PutBase64", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrBadRequest)

	_, err := newSvc(&mockRepo{}, files, &mockMailer{}, nil).Apply(context.Background(), req)

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidResume, de.Code)
}

func TestApply_MissingFields(t *testing.T) {
	req := validReq()
	req.WhyJustOne = ""
	req.LinkedinOrResume = "not a url"

	_, err := newSvc(&mockRepo{}, &mockFiles{}, &mockMailer{}, nil).Apply(context.Background(), req)

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidRequest, de.Code)
	assert.Contains(t, de.Message, "WhyJustOne")
	assert.Contains(t, de.Message, "LinkedinOrResume")
}

func TestApply_MailFailureStillRecorded(t *testing.T) {
	repo, ml, pub := &mockRepo{}, &mockMailer{}, &mockPublisher{}
	ml.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	repo.On("Put", mock.Anything, mock.MatchedBy(func(a *domain.CareerApplication) bool { return !a.EmailSent })).Return(nil)

	_, err := newSvc(repo, &mockFiles{}, ml, pub).Apply(context.Background(), validReq())

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeEmailFailed, de.Code)
	repo.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_NotificationFailureIgnored(t *testing.T) {
	repo, ml, pub := &mockRepo{}, &mockMailer{}, &mockPublisher{}
	ml.On("Send", mock.Anything, mock.Anything).Return(nil)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns down"))

	res, err := newSvc(repo, &mockFiles{}, ml, pub).Apply(context.Background(), validReq())

	require.NoError(t, err)
	assert.True(t, res.Success)
}
