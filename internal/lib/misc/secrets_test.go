package misc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSecret(t *testing.T) {
	t.Setenv("HATM_TEST_SECRET", "direct-value")
	assert.Equal(t, "direct-value", GetSecret("HATM_TEST_SECRET"))

	secretFile := filepath.Join(t.TempDir(), "api_key")
	require.NoError(t, os.WriteFile(secretFile, []byte("file-value\n"), 0o600))
	t.Setenv("HATM_TEST_FILESECRET_FILE", secretFile)
	assert.Equal(t, "file-value", GetSecret("HATM_TEST_FILESECRET"), "file-backed secrets are trimmed")

	assert.Empty(t, GetSecret("HATM_TEST_MISSING"))
}
