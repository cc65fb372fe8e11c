package config

const (
	defaultListen     = ":8080"
	defaultProducer   = "echo"
	defaultDelay      = "10ms"
	defaultCORSOrigin = "http://localhost:3000"

	defaultOllamaUpstream = "http://localhost:11434"
	defaultOllamaModel    = "gemma3:latest"

	defaultClientTarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:     defaultListen,
			Producer:   defaultProducer,
			Delay:      defaultDelay,
			CORSOrigin: defaultCORSOrigin,
		},
		Ollama: OllamaConfig{
			Upstream: defaultOllamaUpstream,
			Model:    defaultOllamaModel,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
