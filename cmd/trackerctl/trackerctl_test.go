package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/storage"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	b, err := json.Marshal(map[string]interface{}{
		"app":      map[string]interface{}{"JWTSecret": "cli-secret", "TimeZone": "UTC"},
		"database": map[string]interface{}{"Driver": "sqlite", "Name": filepath.Join(dir, "tracker.db")},
		"log":      map[string]interface{}{"Level": "error", "Path": filepath.Join(dir, "app.log")},
		"notify":   map[string]interface{}{"Channel": "log"},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestCommandsAgainstSQLite(t *testing.T) {
	cfgPath := writeConfig(t)
	run := func(args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		err := cmd.Execute()
		return out.String(), err
	}
	mustRun := func(args ...string) string {
		out, err := run(args...)
		require.NoError(t, err, strings.Join(args, " "))
		return out
	}

	assert.Contains(t, mustRun("migrate"), "schema up to date")
	assert.Contains(t, mustRun("seed"), "seeded 9 tasks and 12 achievements")
	assert.Contains(t, mustRun("seed"), "seeded 9 tasks", "seeding twice is an upsert")

	assert.Contains(t, mustRun("users", "add", "riley", "--passcode", "brave-1"), "created riley #1 (client)")
	assert.Contains(t, mustRun("users", "add", "dr-lee", "-p", "5786", "--role", "admin"), "(admin)")
	_, err := run("users", "add", "riley", "--passcode", "again")
	assert.ErrorIs(t, err, storage.ErrUserExists)
	_, err = run("users", "add", "sam")
	assert.Error(t, err, "passcode flag is required")

	list := mustRun("users", "list")
	assert.Contains(t, list, "riley")
	assert.Contains(t, list, "dr-lee")

	var exp storage.Export
	require.NoError(t, json.Unmarshal([]byte(mustRun("export", "--user", "1")), &exp))
	assert.Equal(t, "riley", exp.User.Name)
	assert.Empty(t, exp.Entries)

	csv := mustRun("export", "-u", "1", "--format", "csv")
	assert.True(t, strings.HasPrefix(csv, "date,week,task,"))
	_, err = run("export", "-u", "1", "--format", "xml")
	assert.Error(t, err)

	assert.Contains(t, mustRun("reminders"), "checked 0 users")
}

func TestPrintUsers(t *testing.T) {
	day := "2026-10-14"
	var out bytes.Buffer
	require.NoError(t, printUsers(&out, []models.User{
		{ID: 1, Name: "riley", Role: models.RoleClient, CurrentWeek: 2, CurrentLevel: 2, TotalXP: 180, CurrentStreak: 3, LastCompletionDay: &day},
		{ID: 2, Name: "dr-lee", Role: models.RoleAdmin, CurrentWeek: 1, CurrentLevel: 1},
	}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2026-10-14")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))
	_, err := loadCatalog(path)
	assert.Error(t, err)

	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.Len(t, c.Tasks, 9)
}
