package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVerificationContent(t *testing.T) {
	content, err := BuildVerificationContent("https://portal.hellouniversity.edu", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "Email Verification - Hello University", content.Subject)
	assert.Contains(t, content.HTMLBody, "https://portal.hellouniversity.edu/verify-email/abc123")
	assert.Contains(t, content.TextBody, "https://portal.hellouniversity.edu/verify-email/abc123")
	assert.Contains(t, content.HTMLBody, "expire in 24 hours")
}

func TestBuildVerificationContentTrailingSlash(t *testing.T) {
	content, err := BuildVerificationContent("https://portal.hellouniversity.edu/", "abc123")
	require.NoError(t, err)

	assert.Contains(t, content.HTMLBody, "https://portal.hellouniversity.edu/verify-email/abc123")
	assert.False(t, strings.Contains(content.HTMLBody, "edu//verify-email"))
}
