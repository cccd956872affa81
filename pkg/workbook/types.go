package workbook

import (
	"context"
	"time"
)

// Options configure a launched application instance
type Options struct {
	Visible bool
}

// Handle is one application instance with at most one open workbook.
// A Handle is not safe for concurrent use; the session that owns it
// serializes access.
type Handle interface {
	// Open loads an existing workbook
	Open(ctx context.Context, path string, readOnly bool) error
	// Create writes a new empty workbook at path and keeps it open
	Create(ctx context.Context, path string) error
	// Save flushes the open workbook to its path
	Save(ctx context.Context) error
	// Close discards the open workbook without saving
	Close(ctx context.Context) error
	// Quit terminates the application instance
	Quit(ctx context.Context) error

	Path() string
	SheetNames() []string
}

// Launcher starts application instances
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Handle, error)
}

// AppConfig describes the external application process paired with each
// workbook. An empty Command keeps documents in-process only.
type AppConfig struct {
	Command      []string      `json:"command,omitempty" mapstructure:"command"`
	HeadlessArgs []string      `json:"headless_args,omitempty" mapstructure:"headless_args"`
	QuitTimeout  time.Duration `json:"quit_timeout" mapstructure:"quit_timeout"`
}

// Error codes
const (
	ErrCodeLaunch   = "LAUNCH_ERROR"
	ErrCodeOpen     = "OPEN_ERROR"
	ErrCodeSave     = "SAVE_ERROR"
	ErrCodeReadOnly = "READ_ONLY"
	ErrCodeState    = "STATE_ERROR"
	ErrCodeQuit     = "QUIT_ERROR"
)

// WorkbookError represents a failure against the application or document
type WorkbookError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *WorkbookError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *WorkbookError) Unwrap() error {
	return e.Err
}
