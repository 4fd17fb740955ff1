package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "cartseg.log"

// Init configures the global logger with two sinks: a human console writer
// on stderr and a rotating file. Called before config.Load, so it resolves
// the log directory from the environment on its own (loading .env beside
// the binary first, the same way config does later).
func Init(verbose bool) {
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		_ = godotenv.Load(filepath.Join(exeDir, ".env"))
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	sinks := []io.Writer{console}
	if fileWriter := openLogFile(exeDir); fileWriter != nil {
		sinks = append(sinks, fileWriter)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		With().
		Timestamp().
		Logger()
}

// openLogFile returns the rotating file sink, or nil if the log directory
// cannot be used (the console sink still works, so logging degrades instead
// of aborting).
func openLogFile(exeDir string) io.Writer {
	logDir := os.Getenv("LOGS_DIR")
	if logDir == "" {
		if exeDir != "" {
			logDir = filepath.Join(exeDir, "logs")
		} else {
			logDir = "logs"
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil
	}
	probe := filepath.Join(logDir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return nil
	}
	_ = os.Remove(probe)

	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    32, // megabytes
		MaxBackups: 16,
		MaxAge:     180, // days
		Compress:   true,
	}
}
