package file

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/justone-api/internal/domain"
)

// ObjectStore is the object storage backend (S3 in production).
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Cipher encrypts payloads at rest and records which key was used.
type Cipher interface {
	Encrypt(plaintext []byte) (ciphertext, keyID string, err error)
	Decrypt(encoded, keyID string) ([]byte, error)
}

// Stored describes an object written by the service.
type Stored struct {
	Object      string
	Name        string
	ContentType string
	Size        int64
	Hash        string // hex SHA-256 of the plaintext
	KeyID       string // set for encrypted objects
	Data        []byte // decoded plaintext, for callers that attach it elsewhere
}

type Service interface {
	// PutEncrypted encrypts data and stores the base64 ciphertext under key.
	PutEncrypted(ctx context.Context, key string, data []byte) (*Stored, error)
	GetDecrypted(ctx context.Context, key, keyID string) ([]byte, error)
	// PutBase64 decodes an uploaded file, rejects it above maxBytes and stores it under prefix.
	PutBase64(ctx context.Context, prefix, filename, contentType, base64Data string, maxBytes int64) (*Stored, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	store  ObjectStore
	cipher Cipher
}

func NewService(store ObjectStore, cipher Cipher) Service {
	return &service{store: store, cipher: cipher}
}

const encryptedContentType = "application/octet-stream"

func (s *service) PutEncrypted(ctx context.Context, key string, data []byte) (*Stored, error) {
	ct, keyID, err := s.cipher.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt object: %w", err)
	}
	if _, err := s.store.Put(ctx, key, []byte(ct), encryptedContentType); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Stored{
		Object:      key,
		Name:        path.Base(key),
		ContentType: encryptedContentType,
		Size:        int64(len(ct)),
		Hash:        hex.EncodeToString(sum[:]),
		KeyID:       keyID,
	}, nil
}

func (s *service) GetDecrypted(ctx context.Context, key, keyID string) ([]byte, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.cipher.Decrypt(string(raw), keyID)
}

func (s *service) PutBase64(ctx context.Context, prefix, filename, contentType, base64Data string, maxBytes int64) (*Stored, error) {
	safeName := SanitizeFilename(filename)
	decoded, err := decodeBase64(base64Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", domain.ErrBadRequest)
	}
	if int64(len(decoded)) > maxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit %d: %w", len(decoded), maxBytes, domain.ErrBadRequest)
	}
	if contentType == "" {
		contentType = ContentTypeFromName(safeName)
	}
	key := strings.TrimSuffix(prefix, "/") + "/" + safeName
	if _, err := s.store.Put(ctx, key, decoded, contentType); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(decoded)
	return &Stored{
		Object:      key,
		Name:        safeName,
		ContentType: contentType,
		Size:        int64(len(decoded)),
		Hash:        hex.EncodeToString(sum[:]),
		Data:        decoded,
	}, nil
}

func (s *service) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// decodeBase64 accepts plain standard base64 or a data URL.
func decodeBase64(v string) ([]byte, error) {
	if strings.HasPrefix(v, "data:") {
		i := strings.Index(v, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		v = v[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(v))
}

// ContentTypeFromName maps the file extensions accepted for uploads.
func ContentTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".doc"):
		return "application/msword"
	case strings.HasSuffix(lower, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// SanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func SanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
