package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultBufferLines is how many log lines the in-memory buffer keeps
const DefaultBufferLines = 1000

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	max   int
	mu    sync.Mutex
}

// NewLogBuffer creates a buffer keeping the last max lines
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &LogBuffer{lines: make([]string, 0, max), max: max}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, strings.TrimRight(string(p), "\n"))
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer
func (lb *LogBuffer) Sync() error {
	return nil
}

// GetLogs returns a copy of the buffered lines, oldest first
func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// Options configure New
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Buffer *LogBuffer
}

// New builds the service logger. Output goes to stdout and, when set, to the buffer.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)}
	if opts.Buffer != nil {
		cores = append(cores, zapcore.NewCore(enc.Clone(), opts.Buffer, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Nop returns a logger that discards everything, for tests and library defaults
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
