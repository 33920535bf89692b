package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  id: a
  listen: ":9001"
cluster:
  members:
    - id: a
      address: "localhost:9001"
    - id: b
      address: "localhost:9002"
    - id: c
      address: "localhost:9003"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.RPC.DialTimeoutMS)
	assert.Equal(t, 60, cfg.Acceptor.PreparedTTLSeconds)
	assert.Equal(t, 120, cfg.Acceptor.AcceptedTTLSeconds)
	assert.Equal(t, 30, cfg.Proposer.InFlightTTLSeconds)
	assert.Equal(t, 300, cfg.Learner.CommitHistoryTTLSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Quorum())
}

func TestLoadRejectsMissingNodeID(t *testing.T) {
	path := writeConfig(t, `
cluster:
  members:
    - id: a
      address: "localhost:9001"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNodeNotInMembers(t *testing.T) {
	path := writeConfig(t, `
node:
  id: z
cluster:
  members:
    - id: a
      address: "localhost:9001"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadExpandsEnvStrict(t *testing.T) {
	t.Setenv("PAXOS_NODE_ID", "a")
	path := writeConfig(t, `
node:
  id: ${PAXOS_NODE_ID}
cluster:
  members:
    - id: a
      address: "localhost:9001"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.Node.ID)
}

func TestLoadFailsOnUnsetEnvVar(t *testing.T) {
	path := writeConfig(t, `
node:
  id: ${PAXOS_UNSET_VAR_FOR_TEST}
cluster:
  members:
    - id: a
      address: "localhost:9001"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDurationAccessors(t *testing.T) {
	path := writeConfig(t, `
node:
  id: a
cluster:
  members:
    - id: a
      address: "localhost:9001"
rpc:
  dial-timeout-ms: 500
  call-timeout-ms: 750
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 500_000_000, cfg.DialTimeout())
	assert.EqualValues(t, 750_000_000, cfg.CallTimeout())
}
