package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bidsconv/internal/errors"
	"bidsconv/internal/watch"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch [rule-file]",
		Short: "Re-validate a rule file whenever it changes",
		Long: `Validate the rule file, then watch it and validate again after every
write until interrupted. A rule file that cannot be loaded at startup is an
error.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.RulesConfig
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return settings.RequireRules()
			}

			w, err := watch.New(path, newPatternEngine(), watch.WithLogger(logger))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if once {
				ev := w.Check()
				printEvent(out, ev)
				return ev.Err
			}

			// A file that cannot be read or parsed at startup is not watched.
			if ev := w.Check(); errors.IsSourceUnavailable(ev.Err) {
				printEvent(out, ev)
				return ev.Err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()
			fmt.Fprintln(out, infoText("Watching "+w.Path()+" (Ctrl+C to stop)"))

			ctx := cmd.Context()
			for {
				select {
				case ev, ok := <-w.Events():
					if !ok {
						return nil
					}
					printEvent(out, ev)
				case <-ctx.Done():
					fmt.Fprintln(out, infoText("Stopping watcher"))
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "validate once and exit")
	return cmd
}

func printEvent(out io.Writer, ev watch.ValidationEvent) {
	stamp := mutedText(ev.Timestamp.Format("15:04:05"))
	switch {
	case ev.Err != nil:
		fmt.Fprintf(out, "%s %s %v\n", stamp, errorText("load failed:"), ev.Err)
	case ev.Valid():
		fmt.Fprintf(out, "%s %s\n", stamp, successText("valid"))
	default:
		fmt.Fprintf(out, "%s %s\n", stamp, errorText(count(len(ev.Issues), "issue", "issues")))
		for _, issue := range ev.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
}
