package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/action-tracker/factory"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC) }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := RootCmd(fixedNow)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHolidays(t *testing.T) {
	out, err := execute(t, "holidays", "2026")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 13)
	assert.Contains(t, lines[0], "2026-01-01")
	assert.Contains(t, lines[0], "Confraternização Universal")
	assert.Contains(t, out, "2026-02-17")
	assert.Contains(t, out, "Carnaval")

	// default year comes from the clock
	defOut, err := execute(t, "holidays")
	require.NoError(t, err)
	assert.Equal(t, out, defOut)

	_, err = execute(t, "holidays", "next")
	assert.Error(t, err)
}

func TestBusinessDay(t *testing.T) {
	out, err := execute(t, "business-day", "2026-10-19")
	require.NoError(t, err)
	assert.Contains(t, out, "is a business day")

	// GIVEN: Finados falls on a Monday in 2026
	out, err = execute(t, "business-day", "2026-11-02")
	require.NoError(t, err)
	assert.Contains(t, out, "not a business day: Finados")
	assert.Contains(t, out, "next business day: 2026-11-03")

	out, err = execute(t, "business-day", "2026-10-17")
	require.NoError(t, err)
	assert.Contains(t, out, "weekend")
	assert.Contains(t, out, "next business day: 2026-10-19")

	_, err = execute(t, "business-day", "17/10/2026")
	assert.Error(t, err)
}

func TestBusinessDays(t *testing.T) {
	// Fri Oct 16, the full week of Oct 19 and Mon Oct 26
	out, err := execute(t, "business-days", "2026-10-16", "2026-10-26")
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out))

	// order does not matter
	out, err = execute(t, "business-days", "2026-10-26", "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out))
}

func TestDeadline(t *testing.T) {
	// Friday 16:00 plus 32 business hours lands on Thursday 16:00
	out, err := execute(t, "deadline", "--at", "2026-10-16T16:00:00Z", "--severity", "critical", "--hours", "32")
	require.NoError(t, err)
	assert.Contains(t, out, "deadline:  2026-10-22T16:00:00Z (Thursday)")

	// default critical target is 48 hours
	out, err = execute(t, "deadline", "-s", "critical")
	require.NoError(t, err)
	assert.Contains(t, out, "48 business hours")
	assert.Contains(t, out, "deadline:  2026-10-26T16:00:00Z (Monday)")
	assert.Contains(t, out, "escalates: after 24 elapsed hours")

	_, err = execute(t, "deadline", "--severity", "urgent")
	assert.Error(t, err)
	_, err = execute(t, "deadline", "--at", "yesterday")
	assert.Error(t, err)
}

func TestRulesValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(good, factory.StandardRulesJSON(), 0o600))

	out, err := execute(t, "rules", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "default-critical")
	assert.Contains(t, out, "4 rules OK")

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`[
  {"id": "a", "severity": "major", "resolution_hours": 16},
  {"id": "b", "severity": "major", "resolution_hours": 24}
]`), 0o600))
	_, err = execute(t, "rules", "validate", dup)
	assert.Error(t, err)

	_, err = execute(t, "rules", "validate", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
