package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/whitetemp/api"
	"github.com/jmcleod/whitetemp/command"
	"github.com/jmcleod/whitetemp/gate"
	"github.com/jmcleod/whitetemp/internal/config"
	"github.com/jmcleod/whitetemp/internal/listlock"
	"github.com/jmcleod/whitetemp/storage/file"
	"github.com/jmcleod/whitetemp/storage/memory"
	"github.com/jmcleod/whitetemp/whitelist"
)

// resetFlags restores every flag to its default. Flag values and their
// Changed marks live on the package-level commands and survive Execute.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.LocalFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func workspace(t *testing.T) (configFile, listFile string) {
	t.Setenv(config.TokenEnv, "")
	dir := t.TempDir()
	return filepath.Join(dir, "whitetemp.toml"), filepath.Join(dir, "lists", "whitetemp_list.json")
}

func TestOneShotCommands(t *testing.T) {
	cfgFile, list := workspace(t)
	common := []string{"--config", cfgFile, "--list", list, "--backend", "file"}

	out, err := execute(t, append([]string{"add", "Alice", "1h"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Added Alice to the whitelist for 1h.")

	data, err := os.ReadFile(list)
	require.NoError(t, err, "the list directory is created on first use")
	var stored map[string]int64
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Contains(t, stored, "alice")

	out, err = execute(t, append([]string{"check", "ALICE"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Player ALICE is whitelisted for: ")

	out, err = execute(t, append([]string{"prolong", "alice", "30m"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Prolonged alice's whitelist time by 30m.")

	out, err = execute(t, append([]string{"list"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "1 whitelisted:")
	assert.Contains(t, out, "alice: ")

	out, err = execute(t, append([]string{"rem", "alice"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed alice from the whitelist.")

	_, err = execute(t, append([]string{"check", "alice"}, common...)...)
	assert.ErrorIs(t, err, command.ErrNotWhitelisted)
}

func TestOneShotCommands_BBolt(t *testing.T) {
	cfgFile, list := workspace(t)
	common := []string{"--config", cfgFile, "--list", list + ".db", "--backend", "bbolt"}

	_, err := execute(t, append([]string{"add", "bob", "2d"}, common...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"check", "bob"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Player bob is whitelisted for: 1d 23h 59m")
}

func TestOneShotCommands_Errors(t *testing.T) {
	cfgFile, list := workspace(t)
	common := []string{"--config", cfgFile, "--list", list, "--backend", "file"}

	_, err := execute(t, append([]string{"add", "alice", "7w"}, common...)...)
	assert.ErrorContains(t, err, "use s, m, h, d, M, or Y")

	_, err = execute(t, append([]string{"prolong", "nobody", "1d"}, common...)...)
	assert.ErrorIs(t, err, whitelist.ErrNoSuchIdentity)

	_, err = execute(t, append([]string{"list"}, "--config", cfgFile, "--list", list, "--backend", "postgres")...)
	assert.ErrorContains(t, err, "invalid configuration")
}

// runningServer serves the admin API over a file-backed store at list and
// holds the list's lock, as "whitetemp server" does.
func runningServer(t *testing.T, list, token string) (*whitelist.Store, *httptest.Server) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(list), 0o755))
	store := whitelist.New(file.NewBackend(list))
	a := api.New(store, gate.New(store), command.New(store),
		api.WithAdminToken(token),
		api.WithRateLimit(1000, 1000),
	)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	lock, _, err := listlock.Acquire(list)
	require.NoError(t, err)
	t.Cleanup(func() { lock.Release() })
	return store, srv
}

func TestOneShotCommands_ForwardToRunningServer(t *testing.T) {
	cfgFile, list := workspace(t)
	store, srv := runningServer(t, list, "cli-token")
	require.NoError(t, store.Grant("alice", time.Now().Add(time.Hour)))
	require.NoError(t, os.WriteFile(cfgFile, []byte(
		`list_path = "`+filepath.ToSlash(list)+`"`+"\n"+
			`server_url = "`+srv.URL+`"`+"\n"), 0o600))
	t.Setenv(config.TokenEnv, "cli-token")

	out, err := execute(t, "rem", "alice", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed alice from the whitelist.")

	assert.False(t, gate.New(store).OnConnect("alice").Allowed, "the server no longer admits a revoked player")

	// An unrelated save by the server must not bring the entry back.
	require.NoError(t, store.Grant("bob", time.Now().Add(time.Hour)))
	persisted, err := file.NewBackend(list).Load()
	require.NoError(t, err)
	assert.NotContains(t, persisted, "alice")
	assert.Contains(t, persisted, "bob")

	out, err = execute(t, "add", "carol", "999Y", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Added carol to the whitelist for 999Y.")
	_, ok := store.Expiration("carol")
	assert.True(t, ok)

	_, err = execute(t, "check", "alice", "--config", cfgFile)
	assert.ErrorContains(t, err, "not in the whitelist")
}

func TestOneShotCommands_WrongTokenIsNotSilent(t *testing.T) {
	cfgFile, list := workspace(t)
	_, srv := runningServer(t, list, "cli-token")
	require.NoError(t, os.WriteFile(cfgFile, []byte(
		`list_path = "`+filepath.ToSlash(list)+`"`+"\n"+
			`server_url = "`+srv.URL+`"`+"\n"), 0o600))
	t.Setenv(config.TokenEnv, "stale-token")

	_, err := execute(t, "rem", "alice", "--config", cfgFile)
	assert.ErrorContains(t, err, "invalid bearer token")
}

func TestOneShotCommands_RefuseWhileServerHoldsList(t *testing.T) {
	cfgFile, list := workspace(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(list), 0o755))
	lock, _, err := listlock.Acquire(list)
	require.NoError(t, err)
	defer lock.Release()

	common := []string{"--config", cfgFile, "--list", list, "--backend", "file"}
	for _, args := range [][]string{{"add", "alice", "1h"}, {"rem", "alice"}, {"prolong", "alice", "1h"}} {
		_, err := execute(t, append(args, common...)...)
		assert.ErrorContains(t, err, "in use by server process", args[0])
	}
	assert.NoFileExists(t, list, "nothing was written behind the server's back")

	out, err := execute(t, append([]string{"list"}, common...)...)
	require.NoError(t, err, "reads still work")
	assert.Contains(t, out, "The whitelist is empty.")

	require.NoError(t, lock.Release())
	_, err = execute(t, append([]string{"add", "alice", "1h"}, common...)...)
	assert.NoError(t, err)
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	cfgFile, list := workspace(t)
	require.NoError(t, os.WriteFile(cfgFile, []byte(`list_path = "`+filepath.ToSlash(list)+`"`+"\n"), 0o600))

	out, err := execute(t, "list", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "The whitelist is empty.")
	_, err = os.Stat(filepath.Dir(list))
	assert.NoError(t, err, "list_path from the config file is used")
}

func TestInit(t *testing.T) {
	cfgFile, _ := workspace(t)

	out, err := execute(t, "init", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+cfgFile)

	data, err := os.ReadFile(cfgFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "list_path")

	_, err = execute(t, "init", "--config", cfgFile)
	assert.ErrorContains(t, err, "already exists")
}

func TestInit_Token(t *testing.T) {
	cfgFile, _ := workspace(t)
	t.Setenv(config.TokenEnv, "")

	out, err := execute(t, "init", "--config", cfgFile, "--token")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote admin token to ")

	cfg, err := config.Load(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(cfgFile), "admin_token"), cfg.AdminTokenFile)

	tok, err := cfg.AdminToken()
	require.NoError(t, err)
	assert.Len(t, tok, 64)
}

func TestConsoleLine(t *testing.T) {
	store := whitelist.New(memory.NewBackend())
	surface := command.New(store)

	reply, stop := consoleLine(surface, "wtadd steve 1d")
	assert.False(t, stop)
	assert.Equal(t, "Added steve to the whitelist for 1d.", reply)

	reply, stop = consoleLine(surface, "/wtcheck nobody")
	assert.False(t, stop)
	assert.Equal(t, "Error: player nobody is not in the whitelist", reply)

	reply, _ = consoleLine(surface, "help")
	for _, name := range command.Names() {
		assert.Contains(t, reply, command.Usage(name))
	}

	reply, stop = consoleLine(surface, "   ")
	assert.Empty(t, reply)
	assert.False(t, stop)

	_, stop = consoleLine(surface, "stop")
	assert.True(t, stop)
}

func TestCompleteConsole(t *testing.T) {
	assert.Equal(t, []string{"wtadd"}, completeConsole("wta"))
	assert.Equal(t, []string{"stop"}, completeConsole("st"))
	assert.Len(t, completeConsole("wt"), len(command.Names()))
}
