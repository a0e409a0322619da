// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package logger provides the process-wide leveled logging sink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Log is the shared logger used by every package in this module.
// Initialize it with InitStderrLog or InitBestEffort before use.
var Log *logrus.Logger

const (
	LevelsFlag        = "log-level"
	LevelsHelp        = "Minimum log level to output."
	LevelsPlaceholder = "(warn)"

	FileFlag     = "log-file"
	FileFlagHelp = "Path to a file to write the full log to."

	ColorFlag         = "log-color"
	ColorFlagHelp     = "Color the stderr log output."
	ColorsPlaceholder = "(auto)"

	defaultStderrLevel = logrus.WarnLevel
	defaultFileLevel   = logrus.DebugLevel
)

// LogFlags holds the values of the standard logging command line flags.
type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

func Levels() []string {
	levels := []string(nil)
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

func Colors() []string {
	return []string{"always", "auto", "never"}
}

// InitStderrLog initializes Log with stderr output only and default levels.
func InitStderrLog() {
	initLog(os.Stderr, defaultStderrLevel)
}

// InitBestEffort initializes Log from the given flags, falling back to
// defaults for anything invalid or unset. Logging setup failures are not
// fatal to the host process.
func InitBestEffort(flags *LogFlags) {
	InitStderrLog()

	if flags == nil {
		return
	}

	if flags.LogLevel != nil && *flags.LogLevel != "" {
		level, err := logrus.ParseLevel(*flags.LogLevel)
		if err != nil {
			Log.Warnf("Invalid value for --%s (%s), using default", LevelsFlag, *flags.LogLevel)
		} else {
			Log.SetLevel(level)
		}
	}

	if flags.LogColor != nil {
		switch *flags.LogColor {
		case "always":
			color.NoColor = false
		case "never":
			color.NoColor = true
		}
	}

	if flags.LogFile != nil && *flags.LogFile != "" {
		logFile, err := os.OpenFile(*flags.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			Log.Warnf("Failed to open log file (%s): %v", *flags.LogFile, err)
		} else {
			Log.AddHook(newFileLogHook(logFile, defaultFileLevel))
		}
	}
}

func initLog(output io.Writer, level logrus.Level) {
	Log = logrus.New()
	Log.SetOutput(output)
	Log.SetLevel(level)
	Log.SetFormatter(&stderrFormatter{})
}

type stderrFormatter struct {
}

func (f *stderrFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		level = color.RedString(level)
	case logrus.WarnLevel:
		level = color.YellowString(level)
	}

	message := fmt.Sprintf("%s [%s] %s\n", entry.Time.Format("2006-01-02T15:04:05Z07:00"), level, entry.Message)
	return []byte(message), nil
}

type fileLogHook struct {
	file      *os.File
	level     logrus.Level
	formatter logrus.Formatter
}

func newFileLogHook(file *os.File, level logrus.Level) *fileLogHook {
	return &fileLogHook{
		file:      file,
		level:     level,
		formatter: &logrus.TextFormatter{DisableColors: true},
	}
}

func (h *fileLogHook) Levels() []logrus.Level {
	levels := []logrus.Level(nil)
	for _, level := range logrus.AllLevels {
		if level <= h.level {
			levels = append(levels, level)
		}
	}
	return levels
}

func (h *fileLogHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.file.Write(line)
	return err
}
