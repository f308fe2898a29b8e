package upload

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"trazio/internal/config"
	"trazio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// explodingReader fails the test if anything reads from it.
type explodingReader struct{ t *testing.T }

func (r explodingReader) Read([]byte) (int, error) {
	r.t.Fatal("file body must not be read")
	return 0, io.EOF
}

func TestValidate_RejectsOversizeBeforeReading(t *testing.T) {
	v := NewValidator(DefaultLimits())

	_, err := v.Validate(KindImage, "big.png", 11*mb, explodingReader{t})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileTooLarge))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Message, "10 MB")
}

func TestValidate_Limits(t *testing.T) {
	t.Parallel()
	v := NewValidator(nil)
	tests := []struct {
		kind Kind
		ok   int64
		bad  int64
	}{
		{KindImage, 10 * mb, 10*mb + 1},
		{KindVideo, 100 * mb, 100*mb + 1},
		{KindDocument, 20 * mb, 20*mb + 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.ok, v.Limit(tt.kind))
			_, err := v.Validate(tt.kind, "f", tt.bad, explodingReader{t})
			assert.ErrorIs(t, err, models.ErrFileTooLarge)
		})
	}
}

func TestValidate_SniffsContentType(t *testing.T) {
	v := NewValidator(DefaultLimits())
	tests := []struct {
		name     string
		kind     Kind
		content  []byte
		wantType string
		wantErr  bool
	}{
		{"png image", KindImage, pngHeader, "image/png", false},
		{"pdf document", KindDocument, []byte("%PDF-1.7\n1 0 obj\n"), "application/pdf", false},
		{"text document", KindDocument, []byte("apuntes de clase"), "text/plain", false},
		{"pdf renamed as image", KindImage, []byte("%PDF-1.7\n"), "", true},
		{"text as video", KindVideo, []byte("hola"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := v.Validate(tt.kind, "file", int64(len(tt.content)), bytes.NewReader(tt.content))
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(f.ContentType, tt.wantType), f.ContentType)

			replayed, err := io.ReadAll(f.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.content, replayed)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	k, err := ParseKind("video")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, k)

	_, err = ParseKind("audio")
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestLimitsFromConfig(t *testing.T) {
	t.Parallel()
	l := LimitsFromConfig(&config.Config{UploadMaxImageMB: 5, UploadMaxVideoMB: 0, UploadMaxDocumentMB: 1})
	assert.Equal(t, int64(5*mb), l[KindImage])
	assert.Equal(t, int64(100*mb), l[KindVideo])
	assert.Equal(t, int64(1*mb), l[KindDocument])
}
