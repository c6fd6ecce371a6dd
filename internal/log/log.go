// Package log holds the process-wide zerolog logger and one child logger
// per powledger component.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// consoleTimeFormat is the timestamp layout of human-readable output.
const consoleTimeFormat = "15:04:05.000"

// Logger is the root logger. Component loggers derive from it.
var Logger zerolog.Logger

// Component loggers. Each carries a "component" field.
var (
	Ledger  zerolog.Logger
	Mining  zerolog.Logger
	Mempool zerolog.Logger
	RPC     zerolog.Logger
	REST    zerolog.Logger
	Storage zerolog.Logger
	Archive zerolog.Logger
	Node    zerolog.Logger
)

var components = []struct {
	name   string
	logger *zerolog.Logger
}{
	{"ledger", &Ledger},
	{"mining", &Mining},
	{"mempool", &Mempool},
	{"rpc", &RPC},
	{"rest", &REST},
	{"storage", &Storage},
	{"archive", &Archive},
	{"node", &Node},
}

var (
	fileMu sync.Mutex
	file   *os.File // Current log file, nil when logging to stdout only.
)

func init() {
	setRoot(NewConsoleLogger(os.Stdout, "info"))
}

// Init replaces the root logger. Console output is colored unless
// jsonOutput is set. A non-empty file additionally receives every line as
// JSON; a file opened by an earlier Init is closed.
func Init(level string, jsonOutput bool, file string) error {
	var console io.Writer = os.Stdout
	if !jsonOutput {
		console = consoleWriter(os.Stdout)
	}

	f, err := swapFile(file)
	if err != nil {
		return err
	}
	out := console
	if f != nil {
		out = zerolog.MultiLevelWriter(console, f)
	}

	setRoot(newLogger(out, level))
	return nil
}

// Close closes the log file opened by Init, if any, and falls back to
// console-only logging at the current level.
func Close() error {
	level := Logger.GetLevel()
	f, _ := swapFile("")
	setRoot(zerolog.New(consoleWriter(os.Stdout)).Level(level).With().Timestamp().Logger())
	if f != nil {
		return f.Close()
	}
	return nil
}

// swapFile opens path (if any) as the new log file and closes the old one.
func swapFile(path string) (*os.File, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	var next *os.File
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		next = f
	}
	if file != nil {
		file.Close()
	}
	file = next
	return next, nil
}

// NewConsoleLogger creates a colored, human-readable logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(consoleWriter(w), level)
}

// NewJSONLogger creates a logger that writes one JSON object per line.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(w, level)
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// parseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func setRoot(l zerolog.Logger) {
	Logger = l
	for _, c := range components {
		*c.logger = Logger.With().Str("component", c.name).Logger()
	}
}

// WithJobID returns the mining logger tagged with a job ID.
func WithJobID(jobID string) zerolog.Logger {
	return Mining.With().Str("job_id", jobID).Logger()
}
