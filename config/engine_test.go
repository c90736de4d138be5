package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEngineConfigDefaultsWhenExecutionIsNil(t *testing.T) {
	cfg, err := ResolveEngineConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), cfg)
}

func TestResolveEngineConfigOverridesNamedFields(t *testing.T) {
	cfg, err := ResolveEngineConfig(map[string]interface{}{
		"partitions":                      8,
		"batch_size":                      2048,
		"debug_error_on_nested_loop_join": true,
		"application_name":                "loadtest",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Partitions)
	assert.Equal(t, 2048, cfg.BatchSize)
	assert.True(t, cfg.DebugErrorOnNestedLoopJoin)
	assert.Equal(t, "loadtest", cfg.ApplicationName)
	assert.Equal(t, "", cfg.DebugStringVar)
}

func TestResolveEngineConfigRejectsWrongType(t *testing.T) {
	_, err := ResolveEngineConfig(map[string]interface{}{
		"partitions": "four",
	})
	assert.Error(t, err)
}
