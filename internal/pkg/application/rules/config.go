package rules

type Config struct {
	DefaultCooldownMinutes   int `yaml:"default_cooldown_minutes"`
	DefaultAutoExpireMinutes int `yaml:"default_auto_expire_minutes"`
	DefaultPageSize          int `yaml:"default_page_size"`
	MaxPageSize              int `yaml:"max_page_size"`
}

func DefaultConfig() Config {
	return Config{
		DefaultCooldownMinutes:   15,
		DefaultAutoExpireMinutes: 240,
		DefaultPageSize:          50,
		MaxPageSize:              500,
	}
}

// withDefaults fills unset values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.DefaultCooldownMinutes <= 0 {
		c.DefaultCooldownMinutes = d.DefaultCooldownMinutes
	}
	if c.DefaultAutoExpireMinutes <= 0 {
		c.DefaultAutoExpireMinutes = d.DefaultAutoExpireMinutes
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = d.DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = d.MaxPageSize
	}

	return c
}
