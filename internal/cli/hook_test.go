package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestInstallStopHookCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claude", "settings.json")

	require.NoError(t, installStopHook(path, "relay hook"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(data))

	cmd := gjson.GetBytes(data, "hooks.Stop.0.hooks.0.command")
	assert.Equal(t, "relay hook", cmd.String())
	assert.Equal(t, "command", gjson.GetBytes(data, "hooks.Stop.0.hooks.0.type").String())
}

func TestInstallStopHookPreservesExistingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{"permissions":{"allow":["Read"]},"hooks":{"PreToolUse":[{"hooks":[{"type":"command","command":"lint"}]}]}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	require.NoError(t, installStopHook(path, "relay hook"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Read", gjson.GetBytes(data, "permissions.allow.0").String())
	assert.Equal(t, "lint", gjson.GetBytes(data, "hooks.PreToolUse.0.hooks.0.command").String())
	assert.Equal(t, "relay hook", gjson.GetBytes(data, "hooks.Stop.0.hooks.0.command").String())
}

func TestInstallStopHookIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	require.NoError(t, installStopHook(path, "relay hook"))
	require.NoError(t, installStopHook(path, "relay hook"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.GetBytes(data, "hooks.Stop.#").Int())
}

func TestInstallStopHookRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	err := installStopHook(path, "relay hook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}
