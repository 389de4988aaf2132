package store

type jsProjectorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSProjectorOption configures the JS projector.
type JSProjectorOption func(*jsProjectorConfig)

// JSWithProgramCache applies a ProgramCache to the JS projector.
func JSWithProgramCache(cache ProgramCache) JSProjectorOption {
	return func(cfg *jsProjectorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS projector.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSProjectorOption {
	return func(cfg *jsProjectorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSProjectorOptions(opts []JSProjectorOption) jsProjectorConfig {
	cfg := jsProjectorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
