package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SampleRules is a valid rule file with one sagittal T1 and one axial T2 rule.
const SampleRules = `{
  "searchMethod": "re",
  "descriptions": [
    {
      "dataType": "anat",
      "criteria": {
        "SeriesDescription": "((?=T1).+SAG|(?=SAG).+T1)"
      },
      "modalityLabel": "acq-sag_T1"
    },
    {
      "dataType": "anat",
      "criteria": {
        "SeriesDescription": "((?=T2).+AX|(?=AX).+T2)"
      },
      "modalityLabel": "acq-axial_T2"
    }
  ]
}
`

// CreateTestFilesWithContent creates test files with specific content,
// creating parent directories as needed
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// WriteRuleFile writes content as dir/name and returns the path
func WriteRuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	CreateTestFilesWithContent(t, dir, map[string]string{name: content})
	return filepath.Join(dir, name)
}

// StripANSI removes ANSI escape sequences from a string
func StripANSI(str string) string {
	var result []rune
	inEscape := false
	for _, r := range str {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		result = append(result, r)
	}
	return string(result)
}
