package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/core/schedule"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		createStart, createCurrent, listFormat = "", 0, "table"
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScheduleCommands(t *testing.T) {
	t.Setenv("K_STORE__TYPE", "sqlite")
	t.Setenv("K_STORE__CONF__PATH", filepath.Join(t.TempDir(), "soh.db"))

	out, err := execute(t, "schedule", "create", "str1", "--start", "2025-06-01T08:00:00Z", "--current", "12.5")
	require.NoError(t, err)
	assert.Contains(t, out, "str1")
	assert.Contains(t, out, "PENDING")

	_, err = execute(t, "schedule", "create", "str1")
	assert.True(t, errors.Is(err, schedule.ErrConflict))

	out, err = execute(t, "schedule", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "2025-06-01T08:00:00Z")

	out, err = execute(t, "schedule", "list", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "1,str1,12.5,PENDING,,2025-06-01T08:00:00Z,")

	_, err = execute(t, "schedule", "list", "--format", "xml")
	assert.Error(t, err)
	listFormat = "table"

	_, err = execute(t, "schedule", "stop", "1")
	assert.True(t, errors.Is(err, schedule.ErrNotFound), "pending schedules cannot be stopped")

	_, err = execute(t, "schedule", "remove", "1")
	require.NoError(t, err)

	out, err = execute(t, "schedule", "list")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestScheduleCommandArgs(t *testing.T) {
	_, err := execute(t, "schedule", "stop", "abc")
	assert.Error(t, err)
	_, err = execute(t, "schedule", "create", "str1", "--start", "tomorrow")
	assert.True(t, errors.Is(err, schedule.ErrValidation))
}
