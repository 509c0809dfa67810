package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentKey(t *testing.T) {
	key := DocumentKey(12, "permit.PDF")

	assert.True(t, strings.HasPrefix(key, "business-documents/12/"))
	assert.True(t, strings.HasSuffix(key, ".PDF"))
	assert.NotEqual(t, key, DocumentKey(12, "permit.PDF"))
}

func TestValidateContentType(t *testing.T) {
	s := &S3Storage{}

	assert.NoError(t, s.ValidateContentType("application/pdf", AllowedDocumentContentTypes))
	assert.Error(t, s.ValidateContentType("text/html", AllowedDocumentContentTypes))
}
