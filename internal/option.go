package internal

// Option configures the engine runtime before Run or RunMCP starts it.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
