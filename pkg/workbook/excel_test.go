package workbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launchInProcess(t *testing.T) *ExcelHandle {
	t.Helper()
	h, err := NewExcelLauncher(AppConfig{}).Launch(context.Background(), Options{})
	require.NoError(t, err)
	eh, ok := h.(*ExcelHandle)
	require.True(t, ok)
	assert.Nil(t, eh.Process())
	return eh
}

func TestExcelHandle_CreateSaveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "book.xlsx")

	h := launchInProcess(t)
	require.NoError(t, h.Create(ctx, path))
	assert.Equal(t, path, h.Path())
	assert.Equal(t, []string{"Sheet1"}, h.SheetNames())

	_, err := os.Stat(path)
	require.NoError(t, err)

	_, err = h.File().NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, h.File().SetCellValue("Data", "A1", "hello"))
	require.NoError(t, h.Save(ctx))
	require.NoError(t, h.Quit(ctx))
	assert.Empty(t, h.SheetNames())

	reopened := launchInProcess(t)
	require.NoError(t, reopened.Open(ctx, path, true))
	defer reopened.Quit(ctx)

	assert.Equal(t, []string{"Sheet1", "Data"}, reopened.SheetNames())
	value, err := reopened.File().GetCellValue("Data", "A1")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestExcelHandle_ReadOnlySaveRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	creator := launchInProcess(t)
	require.NoError(t, creator.Create(ctx, path))
	require.NoError(t, creator.Quit(ctx))

	h := launchInProcess(t)
	require.NoError(t, h.Open(ctx, path, true))
	defer h.Quit(ctx)

	err := h.Save(ctx)
	var wbErr *WorkbookError
	require.True(t, errors.As(err, &wbErr))
	assert.Equal(t, ErrCodeReadOnly, wbErr.Code)
}

func TestExcelHandle_StateErrors(t *testing.T) {
	ctx := context.Background()
	h := launchInProcess(t)

	var wbErr *WorkbookError
	require.True(t, errors.As(h.Save(ctx), &wbErr))
	assert.Equal(t, ErrCodeState, wbErr.Code)

	// Close without an open workbook is a no-op
	assert.NoError(t, h.Close(ctx))

	err := h.Open(ctx, filepath.Join(t.TempDir(), "missing.xlsx"), false)
	require.True(t, errors.As(err, &wbErr))
	assert.Equal(t, ErrCodeOpen, wbErr.Code)

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, h.Create(ctx, path))
	err = h.Open(ctx, path, false)
	require.True(t, errors.As(err, &wbErr))
	assert.Equal(t, ErrCodeState, wbErr.Code)
	assert.NoError(t, h.Quit(ctx))
}
