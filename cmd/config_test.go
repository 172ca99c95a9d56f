package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))

	data, err := os.ReadFile("config.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: sqlite")
	assert.Contains(t, string(data), "vpic.nhtsa.dot.gov")

	// Refuses to clobber an existing file unless forced.
	err = configInitCmd.RunE(configInitCmd, nil)
	assert.Error(t, err)

	configForce = true
	t.Cleanup(func() { configForce = false })
	assert.NoError(t, configInitCmd.RunE(configInitCmd, nil))
}
