package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/encryption"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type ResponseStore interface {
	Upsert(ctx context.Context, resp *domain.Response) (*domain.Response, error)
	List(ctx context.Context, f domain.ResponseFilter) ([]domain.Response, string, error)
	Count(ctx context.Context, f domain.ResponseFilter) (int, error)
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type Cipher interface {
	Encrypt(plaintext []byte) (ciphertext, keyID string, err error)
	Decrypt(encoded, keyID string) ([]byte, error)
}

// PhotoStore keeps encrypted photos outside the response row.
type PhotoStore interface {
	PutEncrypted(ctx context.Context, key string, data []byte) (*file.Stored, error)
	GetDecrypted(ctx context.Context, key, keyID string) ([]byte, error)
}

type SubmitResult struct {
	Success              bool      `json:"success"`
	QuestionnaireVersion string    `json:"questionnaire_version"`
	ResponsesHash        string    `json:"responses_hash"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Pagination struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
	Total      int    `json:"total"`
}

type AdminPage struct {
	Success    bool                       `json:"success"`
	Data       []domain.DecryptedResponse `json:"data"`
	Pagination Pagination                 `json:"pagination"`
}

type Service interface {
	Submit(ctx context.Context, userID string, req domain.SubmitResponseRequest) (*SubmitResult, error)
	AdminList(ctx context.Context, f domain.ResponseFilter) (*AdminPage, error)
	// Export walks every matching response in pages and hands each decrypted row to fn.
	Export(ctx context.Context, f domain.ResponseFilter, fn func(domain.DecryptedResponse) error) (int, error)
}

type ServiceDeps struct {
	ResponseRepo ResponseStore
	ProfileRepo  ProfileStore
	Cipher       Cipher
	Photos       PhotoStore
}

type service struct {
	responseRepo ResponseStore
	profileRepo  ProfileStore
	cipher       Cipher
	photos       PhotoStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		responseRepo: deps.ResponseRepo,
		profileRepo:  deps.ProfileRepo,
		cipher:       deps.Cipher,
		photos:       deps.Photos,
	}
}

func (s *service) Submit(ctx context.Context, userID string, req domain.SubmitResponseRequest) (*SubmitResult, error) {
	profile, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, domain.CodeProfileNotFound, "Profile not found. Please verify your email first.")
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !profile.Verified || profile.CampusID == "" {
		return nil, domain.NewError(domain.ErrForbidden, domain.CodeProfileNotVerified, "Please verify your campus email before submitting.")
	}

	answers, err := compactObject(req.Answers)
	if err != nil {
		return nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidAnswers, "Answers must be a JSON object.")
	}
	version := strings.TrimSpace(req.QuestionnaireVersion)
	if !ValidVersion(version) {
		return nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidVersion, "A valid questionnaire version is required.")
	}
	var photo string
	if req.Photo != nil {
		photo = strings.TrimSpace(*req.Photo)
	}
	if photo != "" && !strings.HasPrefix(photo, "data:image/") {
		return nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidPhoto, "Photo must be an image data URL.")
	}

	ciphertext, keyID, err := s.cipher.Encrypt(answers)
	if err != nil {
		return nil, fmt.Errorf("encrypt answers: %w", err)
	}
	now := time.Now().UTC()
	resp := &domain.Response{
		UserID:               userID,
		QuestionnaireVersion: version,
		CampusID:             profile.CampusID,
		AnswersEncrypted:     ciphertext,
		ResponsesHash:        encryption.Hash(answers),
		KeyID:                keyID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if photo != "" {
		stored, err := s.photos.PutEncrypted(ctx, PhotoKey(userID, version), []byte(photo))
		if err != nil {
			return nil, fmt.Errorf("store photo: %w", err)
		}
		resp.PhotoObject = stored.Object
		resp.PhotoKeyID = stored.KeyID
	}

	saved, err := s.responseRepo.Upsert(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	logger.Info(ctx, "response submitted",
		zap.String("user_id", userID),
		zap.String("questionnaire_version", version),
		zap.Bool("photo", photo != ""))
	return &SubmitResult{
		Success:              true,
		QuestionnaireVersion: saved.QuestionnaireVersion,
		ResponsesHash:        saved.ResponsesHash,
		UpdatedAt:            saved.UpdatedAt,
	}, nil
}

func (s *service) AdminList(ctx context.Context, f domain.ResponseFilter) (*AdminPage, error) {
	f.Limit = clampLimit(f.Limit)
	rows, next, err := s.responseRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.responseRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]domain.DecryptedResponse, 0, len(rows))
	for i := range rows {
		data = append(data, s.decrypt(ctx, &rows[i], f.IncludePhoto))
	}
	return &AdminPage{
		Success:    true,
		Data:       data,
		Pagination: Pagination{Limit: f.Limit, NextCursor: next, Total: total},
	}, nil
}

func (s *service) Export(ctx context.Context, f domain.ResponseFilter, fn func(domain.DecryptedResponse) error) (int, error) {
	f.Limit = MaxLimit
	f.Cursor = ""
	n := 0
	for {
		rows, next, err := s.responseRepo.List(ctx, f)
		if err != nil {
			return n, err
		}
		for i := range rows {
			if err := fn(s.decrypt(ctx, &rows[i], f.IncludePhoto)); err != nil {
				return n, err
			}
			n++
		}
		if next == "" {
			return n, nil
		}
		f.Cursor = next
	}
}

// decrypt never fails: rows that cannot be opened are flagged instead.
func (s *service) decrypt(ctx context.Context, r *domain.Response, includePhoto bool) domain.DecryptedResponse {
	out := domain.DecryptedResponse{
		UserID:               r.UserID,
		CampusID:             r.CampusID,
		QuestionnaireVersion: r.QuestionnaireVersion,
		ResponsesHash:        r.ResponsesHash,
		HasPhoto:             r.PhotoObject != "",
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	plain, err := s.cipher.Decrypt(r.AnswersEncrypted, r.KeyID)
	if err != nil {
		logger.Warn(ctx, "response decryption failed", zap.String("user_id", r.UserID),
			zap.String("questionnaire_version", r.QuestionnaireVersion), zap.Error(err))
		out.DecryptionError = true
	} else {
		out.Answers = json.RawMessage(plain)
		out.HashVerified = encryption.Hash(plain) == r.ResponsesHash
	}

	if includePhoto && out.HasPhoto {
		photo, err := s.photos.GetDecrypted(ctx, r.PhotoObject, r.PhotoKeyID)
		if err != nil {
			logger.Warn(ctx, "photo decryption failed", zap.String("user_id", r.UserID), zap.Error(err))
		} else {
			p := string(photo)
			out.Photo = &p
		}
	}
	return out
}

// ValidVersion accepts loose semantic versions such as "v2.0" or "1.3.0".
func ValidVersion(v string) bool {
	if v == "" {
		return false
	}
	_, err := semver.NewVersion(v)
	return err == nil
}

// PhotoKey is the object key of a response photo.
func PhotoKey(userID, version string) string {
	return fmt.Sprintf("responses/%s/%s/photo.enc", file.SanitizeFilename(userID), file.SanitizeFilename(version))
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// compactObject requires a JSON object and returns it without insignificant whitespace.
func compactObject(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("answers must be an object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
