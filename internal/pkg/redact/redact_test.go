package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "us***@example.com", Email("user@example.com"))
	require.Equal(t, "***@e.com", Email("ab@e.com"))
	require.Equal(t, "***", Email("not-an-email"))
	require.Equal(t, "***", Email(""))
}

func TestTokenAndPassword(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[REDACTED_TOKEN]", Token())
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}
