package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bidsconv/internal/analysis"
	"bidsconv/internal/config"
	"bidsconv/internal/convert"
	"bidsconv/internal/log"
	"bidsconv/internal/patterns"
)

var (
	settingsFile string
	v            *viper.Viper
	settings     *config.Settings
	logger       log.Logging = log.Nop()
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	v = config.New()
	settings = nil
	settingsFile = ""

	rootCmd := &cobra.Command{
		Use:   "bidsconv",
		Short: "Validate dcm2bids rule files and convert DICOM series to BIDS",
		Long: `bidsconv checks dcm2bids configuration files, reports which rules match
which scan labels, suggests and applies pattern cleanups, and drives dcm2bids
over a directory of subjects.

Settings are read from ./bidsconv.{yaml,json,toml} (or --settings), then
BIDSCONV_* environment variables and a .env file, then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			s, err := config.Load(v, settingsFile)
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			settings = s
			logger = newLogger(cmd, s.Log)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsFile, "settings", "", "settings file (default is ./bidsconv.{yaml,json,toml})")
	flags.StringP("config", "c", "", "dcm2bids rule file")
	flags.StringP("dicom-dir", "d", "", "directory of raw DICOM files")
	flags.StringP("output-dir", "o", "", "BIDS output directory")
	flags.StringSlice("include", analysis.DefaultInclude, "glob patterns selecting DICOM files")
	flags.Bool("log-json", false, "write logs as JSON")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-file", "", "also append logs to this file")

	bind(flags.Lookup("config"), config.KeyRules)
	bind(flags.Lookup("dicom-dir"), config.KeyDicomDir)
	bind(flags.Lookup("output-dir"), config.KeyOutputDir)
	bind(flags.Lookup("include"), config.KeyInclude)
	bind(flags.Lookup("log-json"), config.KeyLogJSON)
	bind(flags.Lookup("debug"), config.KeyLogDebug)
	bind(flags.Lookup("log-file"), config.KeyLogFile)

	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewDuplicatesCmd())
	rootCmd.AddCommand(NewOptimizeCmd())
	rootCmd.AddCommand(NewConvertCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewExportCmd())
	rootCmd.AddCommand(NewWatchCmd())

	return rootCmd
}

func newLogger(cmd *cobra.Command, ls config.LogSettings) log.Logging {
	opts := []log.Option{log.WithOutput(cmd.ErrOrStderr()), log.WithLevel("info")}
	if ls.Debug {
		opts = append(opts, log.WithLevel("debug"))
	}
	if ls.JSON {
		opts = append(opts, log.WithJSON())
	}
	if ls.File != "" {
		opts = append(opts, log.WithFile(ls.File))
	}
	return log.NewLogger(opts...)
}

func newPatternEngine() *patterns.Engine {
	return patterns.New(patterns.WithLogger(logger))
}

func newAnalysisEngine() (*analysis.Engine, error) {
	return analysis.New(
		analysis.WithInclude(settings.Include...),
		analysis.WithLogger(logger),
	)
}

// converterOptions maps settings onto converter options.
func converterOptions(s *config.Settings) convert.Options {
	return convert.Options{
		ConfigPath: s.RulesConfig,
		DicomDir:   s.DicomDir,
		OutputDir:  s.OutputDir,
		Binary:     s.Binary,
		Session:    s.Session,
		DryRun:     s.DryRun,
		SkipDone:   s.SkipDone,
		Patterns:   newPatternEngine(),
		Logger:     logger,
	}
}
