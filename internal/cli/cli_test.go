package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/internal/cli"
)

type env struct {
	sqlite string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("QUESTLOG_USER", "")
	t.Setenv("BOLTDB_PATH", filepath.Join(dir, "outbox.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOCK_DRIVER", "local")
	return env{sqlite: filepath.Join(dir, "questlog.db")}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--store", "sqlite", "--sqlite-path", e.sqlite}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_ProgressionFlow(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema is up to date")

	_, err = e.run(t, "-u", "alice", "ledger", "init")
	require.NoError(t, err)

	out, err = e.run(t, "-u", "alice", "task", "add", "Write report", "-p", "high")
	require.NoError(t, err)
	var task struct {
		ID       string `json:"id"`
		XPReward int    `json:"xp_reward"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.Equal(t, 30, task.XPReward)

	out, err = e.run(t, "-u", "alice", "task", "done", task.ID)
	require.NoError(t, err)
	var toggled struct {
		Ledger struct {
			XP int `json:"xp"`
		} `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &toggled))
	assert.Equal(t, 30, toggled.Ledger.XP)

	out, err = e.run(t, "-u", "alice", "ledger", "show")
	require.NoError(t, err)
	var view struct {
		Ledger struct {
			XP             int `json:"xp"`
			TasksCompleted int `json:"tasks_completed"`
		} `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 30, view.Ledger.XP)
	assert.Equal(t, 1, view.Ledger.TasksCompleted)

	out, err = e.run(t, "-u", "alice", "task", "list", "--status", "completed")
	require.NoError(t, err)
	var tasks []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	assert.Len(t, tasks, 1)

	out, err = e.run(t, "leaderboard", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_id": "alice"`)
}

func TestCLI_RequiresUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "ledger", "show")
	assert.ErrorContains(t, err, "--user")
}

func TestCLI_ResetNeedsConfirmation(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "-u", "alice", "reset")
	assert.ErrorContains(t, err, "--yes")

	_, err = e.run(t, "-u", "alice", "ledger", "init")
	require.NoError(t, err)
	out, err := e.run(t, "-u", "alice", "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, `"xp": 0`)
}

func TestCLI_UnknownStore(t *testing.T) {
	newEnv(t)
	cmd := cli.NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--store", "mongo", "leaderboard"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
