package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighScoreCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCORE_BACKEND", "sqlite")
	t.Setenv("LOG_LEVEL", "error")

	configFile := filepath.Join(dir, "config.yaml")
	writeFile(t, configFile, "score:\n  sqlite_path: "+filepath.Join(dir, "scores.db")+"\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"highscore", "--config", configFile})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "High score: 0\n", out.String())
}

func TestMigrateCommand_RequiresPostgres(t *testing.T) {
	t.Setenv("SCORE_BACKEND", "memory")
	t.Setenv("POSTGRES_URL", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres url not configured")
}

func TestQuizServiceWiring_MemoryBackend(t *testing.T) {
	t.Setenv("SCORE_BACKEND", "memory")
	t.Setenv("REDIS_ADDR", "")

	d, err := newDeps(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	defer d.Close()

	service, err := d.quizService(context.Background())
	require.NoError(t, err)

	high, err := service.HighScore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, high)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}
