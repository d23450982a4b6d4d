package config

// Overrides holds command-line settings that take priority over the file.
// Zero values leave the loaded setting untouched.
type Overrides struct {
	Debug     bool
	Format    string
	Workers   int
	MaxUpload int64
	LogFile   string
}

// apply applies CLI flag overrides to the config.
func (o Overrides) apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.Format != "" {
		cfg.Output.Format = o.Format
	}
	if o.Workers > 0 {
		cfg.Output.Workers = o.Workers
	}
	if o.MaxUpload > 0 {
		cfg.Intake.MaxUploadBytes = o.MaxUpload
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
}
