package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkerCommand tests the worker command structure.
func TestWorkerCommand(t *testing.T) {
	cmd := NewWorkerCommand()

	assert.NotNil(t, cmd, "NewWorkerCommand() should not return nil")
	assert.Equal(t, "worker", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

// TestWorkerCommand_HasRunSubcommand verifies the run subcommand.
func TestWorkerCommand_HasRunSubcommand(t *testing.T) {
	cmd := NewWorkerCommand()

	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err, "should find run subcommand")
	require.NotNil(t, runCmd)

	assert.Equal(t, "run", runCmd.Use)
	assert.NotEmpty(t, runCmd.Long)
	assert.NotEmpty(t, runCmd.Example)
}

// TestDefaultWorkerDeps verifies production dependencies are wired.
func TestDefaultWorkerDeps(t *testing.T) {
	deps := DefaultWorkerDeps()

	require.NotNil(t, deps)
	assert.NotNil(t, deps.LoadConfig)
	assert.NotNil(t, deps.ConnectToDB)
	assert.NotNil(t, deps.NewQueue)
}
