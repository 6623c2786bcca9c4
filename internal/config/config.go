package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bidsconv/internal/analysis"
	"bidsconv/internal/convert"
	"bidsconv/internal/errors"
	"bidsconv/internal/upload"
)

// EnvPrefix is prepended to every environment override, e.g. BIDSCONV_DICOM_DIR.
const EnvPrefix = "BIDSCONV"

// FileName is the settings file looked up in the working directory when no
// explicit path is given. Viper detects the extension.
const FileName = "bidsconv"

// Setting keys. Nested keys map to env vars with "." replaced by "_".
const (
	KeyDicomDir  = "dicom_dir"
	KeyOutputDir = "output_dir"
	KeyRules     = "config"
	KeySubjects  = "subjects"
	KeySession   = "session"
	KeyBinary    = "dcm2bids"
	KeyInclude   = "include"
	KeyLedger    = "ledger_dsn"
	KeyDryRun    = "dry_run"
	KeySkipDone  = "skip_done"
	KeyLogJSON   = "log.json"
	KeyLogDebug  = "log.debug"
	KeyLogFile   = "log.file"

	KeyS3Endpoint  = "s3.endpoint"
	KeyS3Region    = "s3.region"
	KeyS3AccessKey = "s3.access_key"
	KeyS3SecretKey = "s3.secret_key"
	KeyS3Bucket    = "s3.bucket"
	KeyS3Prefix    = "s3.prefix"
	KeyS3UseSSL    = "s3.use_ssl"
)

// Settings are the application settings for a run. The dcm2bids rule file
// itself is loaded separately by bidsconfig.
type Settings struct {
	DicomDir  string
	OutputDir string
	// RulesConfig is the path of the dcm2bids rule file.
	RulesConfig string
	Subjects    []string
	Session     string
	Binary      string
	Include     []string
	LedgerDSN   string
	DryRun      bool
	SkipDone    bool
	Log         LogSettings
	S3          upload.S3Config
}

// LogSettings controls logger construction.
type LogSettings struct {
	JSON  bool
	Debug bool
	File  string
}

// New returns a viper instance with defaults, env binding and the settings
// file search path applied. Callers bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDicomDir, "")
	v.SetDefault(KeyOutputDir, "")
	v.SetDefault(KeyRules, "")
	v.SetDefault(KeySubjects, []string{})
	v.SetDefault(KeySession, "")
	v.SetDefault(KeyBinary, convert.DefaultBinary)
	v.SetDefault(KeyInclude, analysis.DefaultInclude)
	v.SetDefault(KeyLedger, "")
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeySkipDone, false)
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyLogDebug, false)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3Prefix, upload.DefaultPrefix)
	v.SetDefault(KeyS3UseSSL, false)
}

// LoadEnv applies .env files to the process environment. Variables that are
// already set win. Missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the settings file into v and returns the merged settings.
// With an empty file, ./bidsconv.{yaml,json,toml} is used if present.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, readError(file, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, readError(v.ConfigFileUsed(), err)
			}
		}
	}
	return FromViper(v), nil
}

func readError(file string, err error) error {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		return errors.NewConfigError("settings file not found", file, errors.ConfigNotFound, err)
	}
	return errors.NewConfigError("failed to parse settings file", file, errors.ConfigMalformed, err)
}

// FromViper builds Settings from the current values of v.
func FromViper(v *viper.Viper) *Settings {
	return &Settings{
		DicomDir:    strings.TrimSpace(v.GetString(KeyDicomDir)),
		OutputDir:   strings.TrimSpace(v.GetString(KeyOutputDir)),
		RulesConfig: strings.TrimSpace(v.GetString(KeyRules)),
		Subjects:    splitList(v.GetStringSlice(KeySubjects)),
		Session:     strings.TrimSpace(v.GetString(KeySession)),
		Binary:      strings.TrimSpace(v.GetString(KeyBinary)),
		Include:     splitList(v.GetStringSlice(KeyInclude)),
		LedgerDSN:   strings.TrimSpace(v.GetString(KeyLedger)),
		DryRun:      v.GetBool(KeyDryRun),
		SkipDone:    v.GetBool(KeySkipDone),
		Log: LogSettings{
			JSON:  v.GetBool(KeyLogJSON),
			Debug: v.GetBool(KeyLogDebug),
			File:  strings.TrimSpace(v.GetString(KeyLogFile)),
		},
		S3: upload.S3Config{
			Endpoint:  strings.TrimSpace(v.GetString(KeyS3Endpoint)),
			Region:    strings.TrimSpace(v.GetString(KeyS3Region)),
			AccessKey: strings.TrimSpace(v.GetString(KeyS3AccessKey)),
			SecretKey: strings.TrimSpace(v.GetString(KeyS3SecretKey)),
			Bucket:    strings.TrimSpace(v.GetString(KeyS3Bucket)),
			Prefix:    strings.TrimSpace(v.GetString(KeyS3Prefix)),
			UseSSL:    v.GetBool(KeyS3UseSSL),
		},
	}
}

// splitList flattens comma separated entries, as env vars deliver lists as
// one string.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// S3Enabled reports whether an upload target is configured.
func (s *Settings) S3Enabled() bool {
	return s.S3.Endpoint != "" || s.S3.Bucket != ""
}

// Validate checks settings that are wrong regardless of the command run.
func (s *Settings) Validate() error {
	if s == nil {
		return errors.NewConfigError("nil settings", "", errors.InvalidConfig, nil)
	}
	if s.Binary == "" {
		return errors.NewConfigError("dcm2bids binary must not be empty", KeyBinary, errors.InvalidConfig, nil)
	}
	if len(s.Include) == 0 {
		return errors.NewConfigError("at least one include pattern is required", KeyInclude, errors.InvalidConfig, nil)
	}
	if s.S3Enabled() {
		switch {
		case s.S3.Endpoint == "":
			return errors.NewConfigError("s3 endpoint is required when uploading", KeyS3Endpoint, errors.InvalidConfig, nil)
		case s.S3.Bucket == "":
			return errors.NewConfigError("s3 bucket is required when uploading", KeyS3Bucket, errors.InvalidConfig, nil)
		case s.S3.AccessKey == "" || s.S3.SecretKey == "":
			return errors.NewConfigError("s3 credentials are required when uploading", KeyS3AccessKey, errors.InvalidConfig, nil)
		}
	}
	return nil
}

// RequireRules checks that a rule file path is set.
func (s *Settings) RequireRules() error {
	if s.RulesConfig == "" {
		return errors.NewConfigError("rule file path is required", KeyRules, errors.InvalidConfig, nil)
	}
	return nil
}

// RequireConversion checks the paths a conversion run needs.
func (s *Settings) RequireConversion() error {
	if err := s.RequireRules(); err != nil {
		return err
	}
	if s.DicomDir == "" {
		return errors.NewConfigError("dicom directory is required", KeyDicomDir, errors.InvalidConfig, nil)
	}
	if s.OutputDir == "" {
		return errors.NewConfigError("output directory is required", KeyOutputDir, errors.InvalidConfig, nil)
	}
	return nil
}
