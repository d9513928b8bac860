package notifications

import (
	"io"

	yaml "gopkg.in/yaml.v2"
)

type SubscriberConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	Organizations []string `yaml:"organizations"`
	Severities    []string `yaml:"severities"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// accepts reports whether the subscriber has asked for alerts of this
// organization and severity. An empty list accepts everything.
func (s SubscriberConfig) accepts(organizationID, severity string) bool {
	return contains(s.Organizations, organizationID) && contains(s.Severities, severity)
}

func contains(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}

	for _, v := range list {
		if v == value {
			return true
		}
	}

	return false
}
