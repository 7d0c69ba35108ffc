package codec

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"facter/internal/protocol"

	"github.com/charmbracelet/log"
)

const (
	// DefaultExecTimeout bounds a single executable fact source
	DefaultExecTimeout = 30 * time.Second

	// execWaitDelay is how long Wait keeps reading output after the process
	// is killed, in case a child still holds stdout open
	execWaitDelay = 2 * time.Second
)

// windowsExecutables are the extensions treated as executable on Windows,
// where there is no execute bit
var windowsExecutables = []string{".exe", ".bat", ".cmd", ".com"}

// ExecParser runs executable fact sources. The program is started with no
// arguments and no stdin; stdout is read as key=value lines. A non-zero
// exit, a start failure or a timeout contributes no facts.
type ExecParser struct {
	timeout time.Duration
	logger  *log.Logger
	text    *TextParser
}

// ExecOption configures an ExecParser
type ExecOption func(*ExecParser)

// WithExecTimeout overrides DefaultExecTimeout. Non-positive values are ignored.
func WithExecTimeout(d time.Duration) ExecOption {
	return func(p *ExecParser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithExecLogger sets the logger used for executable stderr and failures
func WithExecLogger(l *log.Logger) ExecOption {
	return func(p *ExecParser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewExecParser creates a new executable parser
func NewExecParser(opts ...ExecOption) *ExecParser {
	p := &ExecParser{
		timeout: DefaultExecTimeout,
		logger:  log.Default().WithPrefix("exec"),
		text:    NewTextParser(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format returns the parser format identifier
func (p *ExecParser) Format() string {
	return "executable"
}

// Timeout returns the per-executable time limit
func (p *ExecParser) Timeout() time.Duration {
	return p.timeout
}

// Matches selects regular files with any execute bit set
func (p *ExecParser) Matches(path string, info fs.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return hasExtension(path, windowsExecutables...)
	}
	return info.Mode().Perm()&0o111 != 0
}

// ParseFile runs the executable at path and enumerates its output
func (p *ExecParser) ParseFile(ctx context.Context, path string, sink protocol.Sink) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = execWaitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if stderr.Len() > 0 {
		for _, line := range strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n") {
			p.logger.Debug("executable stderr", "path", path, "line", line)
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return &ExecutionFailure{Path: path, ExitCode: -1, TimedOut: true, Err: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecutionFailure{Path: path, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &ExecutionFailure{Path: path, ExitCode: -1, Err: err}
	}

	p.logger.Debug("executable completed", "path", path, "duration", elapsed, "bytes", stdout.Len())

	if err := p.text.Parse(&stdout, sink); err != nil {
		return &ParseError{Path: path, Format: p.Format(), Err: err}
	}
	return nil
}
