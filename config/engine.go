package config

// EngineConfig holds the session variables the execution core reads
// out of Config.Execution at plan-build time: partition fan-out,
// target batch size, and a couple of debug knobs. The debug knobs are
// decoded here and checked by this package's tests; no operator and no
// cmd/execrun scenario reads them.
type EngineConfig struct {
	Partitions                 int
	BatchSize                  int
	DebugErrorOnNestedLoopJoin bool
	DebugStringVar             string
	ApplicationName            string
}

// DefaultEngineConfig is what a query plan uses when Config.Execution
// sets nothing at all.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Partitions: 4,
		BatchSize:  1024,
	}
}

// ResolveEngineConfig decodes the loosely typed Execution map the same
// way the rest of this package resolves ad-hoc datasource settings:
// named fields with defaults, an error only on a present-but-wrong-type
// value.
func ResolveEngineConfig(execution map[string]interface{}) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if execution == nil {
		return cfg, nil
	}

	partitions, err := GetInt(execution, "partitions", WithDefault(cfg.Partitions))
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.Partitions = partitions

	batchSize, err := GetInt(execution, "batch_size", WithDefault(cfg.BatchSize))
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.BatchSize = batchSize

	debugNestedLoop, err := GetBool(execution, "debug_error_on_nested_loop_join", WithDefault(false))
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.DebugErrorOnNestedLoopJoin = debugNestedLoop

	debugStringVar, err := GetString(execution, "debug_string_var", WithDefault(""))
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.DebugStringVar = debugStringVar

	applicationName, err := GetString(execution, "application_name", WithDefault(""))
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.ApplicationName = applicationName

	return cfg, nil
}
