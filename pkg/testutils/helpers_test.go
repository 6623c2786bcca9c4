package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteRuleFile(t, dir, "nested/rules.json", SampleRules)

	assert.Equal(t, filepath.Join(dir, "nested", "rules.json"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, SampleRules, string(content))
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "valid", StripANSI("\x1b[38;2;115;245;159mvalid\x1b[0m"))
	assert.Equal(t, "plain", StripANSI("plain"))
}
