package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidsconv/internal/analysis"
	"bidsconv/internal/config"
	"bidsconv/internal/errors"
)

// Helper function to create a settings file in a temp dir
func createSettingsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validYAML = `
dicom_dir: /data/raw_dicoms
output_dir: /data/bids_output
config: /data/dcm2bids_config.json
subjects: [sub-01, sub-02]
session: "01"
ledger_dsn: sqlite://ledger.db
log:
  json: true
s3:
  endpoint: localhost:9000
  bucket: bids-data
  access_key: minio
  secret_key: minio123
`

func TestLoad(t *testing.T) {
	t.Run("load valid settings", func(t *testing.T) {
		path := createSettingsFile(t, "bidsconv.yaml", validYAML)

		s, err := config.Load(config.New(), path)
		require.NoError(t, err)

		assert.Equal(t, "/data/raw_dicoms", s.DicomDir)
		assert.Equal(t, "/data/bids_output", s.OutputDir)
		assert.Equal(t, "/data/dcm2bids_config.json", s.RulesConfig)
		assert.Equal(t, []string{"sub-01", "sub-02"}, s.Subjects)
		assert.Equal(t, "01", s.Session)
		assert.Equal(t, "sqlite://ledger.db", s.LedgerDSN)
		assert.True(t, s.Log.JSON)
		assert.False(t, s.Log.Debug)
		assert.Equal(t, "localhost:9000", s.S3.Endpoint)
		assert.Equal(t, "bids-data", s.S3.Bucket)
		assert.Equal(t, "us-east-1", s.S3.Region)
		assert.Equal(t, "processed_data", s.S3.Prefix)
		assert.True(t, s.S3Enabled())
		require.NoError(t, s.Validate())
		require.NoError(t, s.RequireConversion())
	})

	t.Run("defaults without a file", func(t *testing.T) {
		s, err := config.Load(config.New(), "")
		require.NoError(t, err)

		assert.Equal(t, "dcm2bids", s.Binary)
		assert.Equal(t, analysis.DefaultInclude, s.Include)
		assert.Empty(t, s.Subjects)
		assert.False(t, s.S3Enabled())
		require.NoError(t, s.Validate())

		err = s.RequireConversion()
		require.Error(t, err)
		assert.True(t, errors.IsInvalidConfig(err))
	})

	t.Run("json settings", func(t *testing.T) {
		path := createSettingsFile(t, "bidsconv.json", `{"dicom_dir": "raw", "include": ["**/*.IMA"]}`)

		s, err := config.Load(config.New(), path)
		require.NoError(t, err)
		assert.Equal(t, "raw", s.DicomDir)
		assert.Equal(t, []string{"**/*.IMA"}, s.Include)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsConfigNotFound(err))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := createSettingsFile(t, "bidsconv.yaml", "dicom_dir: [unclosed\n")
		_, err := config.Load(config.New(), path)
		require.Error(t, err)
		assert.True(t, errors.IsConfigMalformed(err))
	})
}

func TestEnvOverrides(t *testing.T) {
	path := createSettingsFile(t, "bidsconv.yaml", validYAML)
	t.Setenv("BIDSCONV_DICOM_DIR", "/env/raw")
	t.Setenv("BIDSCONV_SUBJECTS", "sub-07, sub-08")
	t.Setenv("BIDSCONV_S3_BUCKET", "env-bucket")
	t.Setenv("BIDSCONV_LOG_DEBUG", "true")

	s, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/env/raw", s.DicomDir)
	assert.Equal(t, []string{"sub-07", "sub-08"}, s.Subjects)
	assert.Equal(t, "env-bucket", s.S3.Bucket)
	assert.True(t, s.Log.Debug)
	assert.Equal(t, "/data/bids_output", s.OutputDir)
}

func TestLoadEnv(t *testing.T) {
	envFile := createSettingsFile(t, ".env", "BIDSCONV_TEST_SESSION=03\nBIDSCONV_TEST_KEEP=fromfile\n")
	t.Setenv("BIDSCONV_TEST_KEEP", "fromenv")
	t.Cleanup(func() { os.Unsetenv("BIDSCONV_TEST_SESSION") })

	config.LoadEnv(envFile)

	assert.Equal(t, "03", os.Getenv("BIDSCONV_TEST_SESSION"))
	assert.Equal(t, "fromenv", os.Getenv("BIDSCONV_TEST_KEEP"))

	// Missing files are ignored.
	config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestValidate(t *testing.T) {
	base := func() *config.Settings {
		s := config.FromViper(config.New())
		return s
	}

	tests := []struct {
		name   string
		modify func(s *config.Settings)
		param  string
	}{
		{"empty binary", func(s *config.Settings) { s.Binary = "" }, config.KeyBinary},
		{"no include", func(s *config.Settings) { s.Include = nil }, config.KeyInclude},
		{"s3 without endpoint", func(s *config.Settings) { s.S3.Bucket = "b" }, config.KeyS3Endpoint},
		{"s3 without bucket", func(s *config.Settings) { s.S3.Endpoint = "localhost:9000" }, config.KeyS3Bucket},
		{"s3 without keys", func(s *config.Settings) {
			s.S3.Endpoint = "localhost:9000"
			s.S3.Bucket = "b"
		}, config.KeyS3AccessKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.modify(s)
			err := s.Validate()
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.param, cfgErr.Param())
		})
	}

	t.Run("nil settings", func(t *testing.T) {
		var s *config.Settings
		assert.True(t, errors.IsInvalidConfig(s.Validate()))
	})

	t.Run("conversion requirements", func(t *testing.T) {
		s := base()
		s.RulesConfig = "rules.json"
		s.DicomDir = "raw"
		err := s.RequireConversion()

		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, config.KeyOutputDir, cfgErr.Param())

		s.OutputDir = "out"
		assert.NoError(t, s.RequireConversion())
	})
}
