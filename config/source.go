package config

// A Source provides a configuration on demand.
type Source interface {
	Load() (*Config, error)
}

// File is a Source that reads a YAML or TOML file.
type File string

// Load reads the file.
func (f File) Load() (*Config, error) {
	return Load(string(f))
}

// Document is a Source holding an in-memory document.
type Document struct {
	Data   []byte
	Format Format
}

// Load parses the document.
func (d Document) Load() (*Config, error) {
	return Parse(d.Data, d.Format)
}

// Value is a Source that returns a copy of an already built configuration
// after completing and validating it.
type Value Config

// Load completes and validates a copy of the configuration.
func (v Value) Load() (*Config, error) {
	cfg := Config(v)

	if err := cfg.Complete(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the completed default configuration.
func Default() *Config {
	cfg, err := Value{}.Load()
	if err != nil {
		panic(err)
	}

	return cfg
}
