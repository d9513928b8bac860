package alerts

type Config struct {
	MaxRulesPerEvaluation int `yaml:"max_rules_per_evaluation"`
	GroupingWindowMinutes int `yaml:"grouping_window_minutes"`
	DefaultPageSize       int `yaml:"default_page_size"`
	MaxPageSize           int `yaml:"max_page_size"`
}

func DefaultConfig() Config {
	return Config{
		MaxRulesPerEvaluation: 100,
		GroupingWindowMinutes: 10,
		DefaultPageSize:       50,
		MaxPageSize:           500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.MaxRulesPerEvaluation <= 0 {
		c.MaxRulesPerEvaluation = d.MaxRulesPerEvaluation
	}
	if c.GroupingWindowMinutes <= 0 {
		c.GroupingWindowMinutes = d.GroupingWindowMinutes
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = d.DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = d.MaxPageSize
	}

	return c
}
