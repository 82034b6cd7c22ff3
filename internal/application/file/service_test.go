package file

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/justone-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return "s3://bucket/" + key, nil
}
func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}
func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

// reverseCipher is a reversible stand-in; the real cipher is tested in pkg/encryption.
type reverseCipher struct{}

func (reverseCipher) Encrypt(p []byte) (string, string, error) {
	return base64.StdEncoding.EncodeToString(p), "k1", nil
}
func (reverseCipher) Decrypt(encoded, keyID string) ([]byte, error) {
	if keyID != "k1" {
		return nil, errors.New("unknown key")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ input, want string }{
		{"resume.pdf", "resume.pdf"},
		{"../../etc/passwd", "passwd"},
		{"my resume (final).docx", "my_resume__final_.docx"},
		{"", "_"},
		{"..", "_"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeFilename(c.input), "input: %q", c.input)
	}
}

func TestContentTypeFromName(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFromName("CV.PDF"))
	assert.Equal(t, "application/msword", ContentTypeFromName("cv.doc"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentTypeFromName("cv.docx"))
	assert.Equal(t, "application/octet-stream", ContentTypeFromName("cv.exe"))
}

func TestPutEncrypted_RoundTrip(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, reverseCipher{})

	stored, err := svc.PutEncrypted(context.Background(), "responses/u1/v1/photo.enc", []byte("data:image/png;base64,AAAA"))
	require.NoError(t, err)
	assert.Equal(t, "k1", stored.KeyID)
	assert.NotEqual(t, "data:image/png;base64,AAAA", string(st.objects["responses/u1/v1/photo.enc"]))

	got, err := svc.GetDecrypted(context.Background(), stored.Object, stored.KeyID)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", string(got))
}

func TestPutBase64_StoresDecoded(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, reverseCipher{})
	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))

	stored, err := svc.PutBase64(context.Background(), "careers/app1/", "../CV.pdf", "", payload, 1024)

	require.NoError(t, err)
	assert.Equal(t, "careers/app1/CV.pdf", stored.Object)
	assert.Equal(t, "application/pdf", stored.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), st.objects["careers/app1/CV.pdf"])
	assert.Len(t, stored.Hash, 64)
}

func TestPutBase64_AcceptsDataURL(t *testing.T) {
	svc := NewService(newMemStore(), reverseCipher{})
	payload := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF"))

	stored, err := svc.PutBase64(context.Background(), "careers/x", "cv.pdf", "application/pdf", payload, 1024)

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), stored.Data)
}

func TestPutBase64_Rejects(t *testing.T) {
	svc := NewService(newMemStore(), reverseCipher{})

	_, err := svc.PutBase64(context.Background(), "p", "cv.pdf", "", "!!notbase64", 1024)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
	_, err = svc.PutBase64(context.Background(), "p", "cv.pdf", "", big, 1024)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
