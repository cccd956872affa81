package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelLauncher launches handles whose documents are read and written with
// excelize, each paired with an application process when one is configured.
type ExcelLauncher struct {
	config AppConfig
}

// NewExcelLauncher creates a launcher for the given application config
func NewExcelLauncher(config AppConfig) *ExcelLauncher {
	return &ExcelLauncher{config: config}
}

// Launch starts a new application instance with no workbook open
func (l *ExcelLauncher) Launch(ctx context.Context, opts Options) (Handle, error) {
	h := &ExcelHandle{visible: opts.Visible}

	if len(l.config.Command) > 0 {
		argv := append([]string{}, l.config.Command...)
		if !opts.Visible {
			argv = append(argv, l.config.HeadlessArgs...)
		}
		proc, err := StartProcess(ctx, argv, l.config.QuitTimeout)
		if err != nil {
			return nil, err
		}
		h.proc = proc
	}

	return h, nil
}

// ExcelHandle implements Handle on top of an excelize file
type ExcelHandle struct {
	proc     *Process
	file     *excelize.File
	path     string
	readOnly bool
	visible  bool
}

// Open loads the workbook at path
func (h *ExcelHandle) Open(ctx context.Context, path string, readOnly bool) error {
	if h.file != nil {
		return &WorkbookError{Code: ErrCodeState, Message: fmt.Sprintf("workbook already open: %s", h.path)}
	}
	if err := ctx.Err(); err != nil {
		return &WorkbookError{Code: ErrCodeOpen, Message: "open cancelled", Err: err}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return &WorkbookError{
			Code:    ErrCodeOpen,
			Message: fmt.Sprintf("failed to open workbook %s", path),
			Err:     err,
		}
	}

	h.file = f
	h.path = path
	h.readOnly = readOnly
	return nil
}

// Create writes an empty workbook to path, creating parent directories
func (h *ExcelHandle) Create(ctx context.Context, path string) error {
	if h.file != nil {
		return &WorkbookError{Code: ErrCodeState, Message: fmt.Sprintf("workbook already open: %s", h.path)}
	}
	if err := ctx.Err(); err != nil {
		return &WorkbookError{Code: ErrCodeOpen, Message: "create cancelled", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &WorkbookError{
			Code:    ErrCodeOpen,
			Message: fmt.Sprintf("failed to create directory for %s", path),
			Err:     err,
		}
	}

	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		_ = f.Close()
		return &WorkbookError{
			Code:    ErrCodeSave,
			Message: fmt.Sprintf("failed to create workbook %s", path),
			Err:     err,
		}
	}

	h.file = f
	h.path = path
	h.readOnly = false
	return nil
}

// Save writes the workbook back to its path
func (h *ExcelHandle) Save(ctx context.Context) error {
	if h.file == nil {
		return &WorkbookError{Code: ErrCodeState, Message: "no workbook open"}
	}
	if h.readOnly {
		return &WorkbookError{Code: ErrCodeReadOnly, Message: fmt.Sprintf("workbook opened read-only: %s", h.path)}
	}
	if err := ctx.Err(); err != nil {
		return &WorkbookError{Code: ErrCodeSave, Message: "save cancelled", Err: err}
	}

	if err := h.file.SaveAs(h.path); err != nil {
		return &WorkbookError{
			Code:    ErrCodeSave,
			Message: fmt.Sprintf("failed to save workbook %s", h.path),
			Err:     err,
		}
	}
	return nil
}

// Close releases the workbook without saving
func (h *ExcelHandle) Close(ctx context.Context) error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	if err != nil {
		return &WorkbookError{
			Code:    ErrCodeState,
			Message: fmt.Sprintf("failed to close workbook %s", h.path),
			Err:     err,
		}
	}
	return nil
}

// Quit closes any open workbook and stops the application process
func (h *ExcelHandle) Quit(ctx context.Context) error {
	var errs []error
	if err := h.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if h.proc != nil {
		if err := h.proc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Path returns the path of the open workbook
func (h *ExcelHandle) Path() string {
	return h.path
}

// SheetNames lists worksheets of the open workbook in tab order
func (h *ExcelHandle) SheetNames() []string {
	if h.file == nil {
		return []string{}
	}
	return h.file.GetSheetList()
}

// File exposes the excelize document to collaborators doing cell work
func (h *ExcelHandle) File() *excelize.File {
	return h.file
}

// Process returns the paired application process, nil when in-process
func (h *ExcelHandle) Process() *Process {
	return h.proc
}
