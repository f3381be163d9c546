package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatedPath(t *testing.T) {
	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "/var/log/invoiceflow-2024-03-01.log", DatedPath("/var/log/invoiceflow.log", day))
	assert.Equal(t, "/var/log/invoiceflow-2024-03-01.log", DatedPath("/var/log/invoiceflow", day))
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger := Logger(path, "info")
	logger.Info("listener started")

	file, err := OpenLogFile(path, time.Now())
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
