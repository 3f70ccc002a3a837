package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL         = "http://localhost:3000"
	DefaultWebhookPath = "/api/webhooks/openphone"
)

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile points whctl at one webhook service.
type Profile struct {
	URL         string `yaml:"url"`
	WebhookPath string `yaml:"webhook_path,omitempty"`
	SigningKey  string `yaml:"signing_key,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	AdminToken  string `yaml:"admin_token,omitempty"`
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
	}
}

// DefaultProfile targets a service running locally.
func DefaultProfile() *Profile {
	return &Profile{URL: DefaultURL, WebhookPath: DefaultWebhookPath}
}

// DefaultPath returns $HOME/.whctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".whctl", "config.yaml"), nil
}

func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}

	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// The file may hold a signing key.
	return os.WriteFile(c.path, data, 0600)
}

func (c *Config) SaveProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}

	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	return profile, nil
}

// Resolve returns the named profile with unset fields filled from
// DefaultProfile. A missing profile resolves to the defaults.
func (c *Config) Resolve(name string) *Profile {
	p := DefaultProfile()
	found, err := c.GetProfile(name)
	if err != nil {
		return p
	}
	if found.URL != "" {
		p.URL = found.URL
	}
	if found.WebhookPath != "" {
		p.WebhookPath = found.WebhookPath
	}
	p.SigningKey = found.SigningKey
	p.NATSURL = found.NATSURL
	p.AdminToken = found.AdminToken
	return p
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(c.Profiles, name)

	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}

	return c.Save()
}
