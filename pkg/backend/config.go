// Copyright 2024-2026 Aiku AI

package backend

import (
	"fmt"
	"strings"
)

// Platform and connection defaults, matching the Mattermost server defaults.
const (
	DefaultScheme  = "https"
	DefaultPort    = 8065
	DefaultTimeout = 30
)

// Config holds the backend connection settings. Values come from the YAML
// config file with MATTERMOST_BOT_* environment variables layered on top.
type Config struct {
	// Server is the Mattermost host, without scheme or port.
	Server string `yaml:"server" envconfig:"SERVER"`
	Scheme string `yaml:"scheme" envconfig:"SCHEME"`
	Port   int    `yaml:"port" envconfig:"PORT"`

	// Login and Password authenticate via session login. Token takes
	// precedence when set (personal access token or bot token).
	Login    string `yaml:"login" envconfig:"LOGIN"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	Token    string `yaml:"token" envconfig:"TOKEN"`

	// Team is the name of the team the bot binds to. Events from other
	// teams are discarded.
	Team string `yaml:"team" envconfig:"TEAM"`

	// Insecure disables TLS certificate verification.
	Insecure bool `yaml:"insecure" envconfig:"INSECURE"`
	// Timeout is the HTTP and websocket timeout in seconds.
	Timeout int `yaml:"timeout" envconfig:"TIMEOUT"`

	// MessageSizeLimit caps outgoing chunk size. Values above the platform
	// limit are clamped; zero means the platform limit.
	MessageSizeLimit int `yaml:"message_size_limit" envconfig:"MESSAGE_SIZE_LIMIT"`
}

// PostProcess validates the config and fills in defaults.
func (c *Config) PostProcess() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	c.Server = strings.TrimRight(c.Server, "/")
	if c.Team == "" {
		return fmt.Errorf("team is required")
	}
	if c.Token == "" && (c.Login == "" || c.Password == "") {
		return fmt.Errorf("either token or login and password are required")
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// APIURL returns the base URL for the REST API.
func (c *Config) APIURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Server, c.Port)
}

// messageLimit returns the effective outgoing chunk size.
func (c *Config) messageLimit() int {
	if c.MessageSizeLimit > 0 && c.MessageSizeLimit < MessageLimit {
		return c.MessageSizeLimit
	}
	return MessageLimit
}
