package fluxion

// nodeConfig collects the construction options shared by all node types.
type nodeConfig struct {
	name     string
	exec     Executor
	registry *Registry
}

// Option configures node construction.
type Option func(*nodeConfig)

// WithName sets the node's diagnostic name. Defaults to a generated
// "<kind>.<id>" name; wrapper nodes default to their parent's name plus a
// role suffix.
func WithName(name string) Option {
	return func(c *nodeConfig) {
		c.name = name
	}
}

// WithExecutor sets the executor used for the node's asynchronous state
// writes. Defaults to SyncExecutor, which applies writes inline. The
// orchestrator typically supplies one shared PoolExecutor for the whole
// graph.
func WithExecutor(exec Executor) Option {
	return func(c *nodeConfig) {
		c.exec = exec
	}
}

// WithRegistry registers the node with reg at construction, making it
// visible to diagnostics such as the inspection server.
func WithRegistry(reg *Registry) Option {
	return func(c *nodeConfig) {
		c.registry = reg
	}
}

func buildConfig(opts []Option) nodeConfig {
	var cfg nodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.exec == nil {
		cfg.exec = SyncExecutor{}
	}
	return cfg
}

// register adds the finished node to the configured registry, if any.
func (c nodeConfig) register(n Signal) {
	if c.registry != nil {
		c.registry.add(n)
	}
}
