package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ledgerctl", cmd.Use)
	assert.Contains(t, cmd.Long, "ledger state database")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"provision", "verify", "stats"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "ledger.yaml", configFlag.DefValue)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("yaml"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "stats"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// writeTestConfig writes a minimal config pointing at a database inside
// the test's temp dir and returns the config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	cfg := "database_path: " + filepath.Join(dir, "ledger.db") + "\n" +
		"default_limits:\n" +
		"  - account_type: 2\n" +
		"    daily_out: 100\n" +
		"    weekly_out: 200\n" +
		"    monthly_out: 300\n" +
		"    annual_out: 400\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestProvisionVerifyStats(t *testing.T) {
	cfgPath := writeTestConfig(t)

	run := func(args ...string) string {
		buf := &bytes.Buffer{}
		cmd := NewRootCommand()
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(append([]string{"--config", cfgPath, "--format", "json"}, args...))
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	var provision CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run("provision")), &provision))
	assert.Equal(t, "ok", provision.Status)
	data := provision.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["seeded_limits"])

	var verify CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run("verify")), &verify))
	assert.Equal(t, "ok", verify.Status)

	var stats CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run("stats")), &stats))
	assert.Equal(t, "ok", stats.Status)
	statsData := stats.Data.(map[string]interface{})
	assert.Equal(t, float64(1), statsData["total"])
}

func TestProvisionMissingConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "provision"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
