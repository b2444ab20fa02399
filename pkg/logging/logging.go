// Package logging configures the global zerolog logger on top of glazed's
// logging section.
package logging

import (
	"io"
	"strings"

	glazedlogging "github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type Settings struct {
	glazedlogging.LoggingSettings
	// Quiet discards output when no file is set; the TUI owns the terminal.
	Quiet bool
}

// ParseLevel converts a string level into a zerolog.Level with a safe default.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

// AddFlags registers glazed's logging flags (level, format, file, caller,
// stdout mirroring and logstash) as persistent flags of root.
func AddFlags(root *cobra.Command, appName string) error {
	return glazedlogging.AddLoggingSectionToRootCommand(root, appName)
}

// ApplyFlags copies the flags that have no config file counterpart from
// cmd into s.
func ApplyFlags(cmd *cobra.Command, s *Settings) error {
	f := cmd.Flags()
	var err error
	if s.LogToStdout, err = f.GetBool("log-to-stdout"); err != nil {
		return errors.Wrap(err, "reading --log-to-stdout")
	}
	if s.LogstashEnabled, err = f.GetBool("logstash-enabled"); err != nil {
		return errors.Wrap(err, "reading --logstash-enabled")
	}
	if s.LogstashHost, err = f.GetString("logstash-host"); err != nil {
		return errors.Wrap(err, "reading --logstash-host")
	}
	if s.LogstashPort, err = f.GetInt("logstash-port"); err != nil {
		return errors.Wrap(err, "reading --logstash-port")
	}
	if s.LogstashProtocol, err = f.GetString("logstash-protocol"); err != nil {
		return errors.Wrap(err, "reading --logstash-protocol")
	}
	if s.LogstashAppName, err = f.GetString("logstash-app-name"); err != nil {
		return errors.Wrap(err, "reading --logstash-app-name")
	}
	if s.LogstashEnvironment, err = f.GetString("logstash-environment"); err != nil {
		return errors.Wrap(err, "reading --logstash-environment")
	}
	return nil
}

// Init replaces log.Logger according to s. Log files are rotated by glazed.
func Init(s Settings) error {
	gs := s.LoggingSettings
	if gs.LogFormat == "" {
		gs.LogFormat = "text"
	}
	if s.Quiet {
		// glazed logs while it switches writers, and stdout belongs to the TUI
		log.Logger = log.Output(io.Discard)
		gs.LogToStdout = false
	}
	if err := glazedlogging.InitLoggerFromSettings(&gs); err != nil {
		return errors.Wrap(err, "init logger")
	}
	if s.Quiet && gs.LogFile == "" {
		log.Logger = log.Output(io.Discard)
	}
	zerolog.SetGlobalLevel(ParseLevel(gs.LogLevel))
	return nil
}
