// Package config loads and defaults the backend daemon's
// configuration (spec §6's dispatcher-host environment/CLI surface):
// the config file, startup mode, extra-XML file, logging target,
// transport selection, and data directory.
//
// Grounded on pkg/config/config.go: a plain struct unmarshaled from
// YAML via New(file), followed by a validateSetDefaults pass that
// fills in zero-value fields and rejects contradictory combinations.
package config

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Transport is the socket family the dispatcher listens on (spec §6
// "-a UNIX|IPv4|IPv6").
type Transport string

const (
	TransportUnix Transport = "UNIX"
	TransportIPv4 Transport = "IPv4"
	TransportIPv6 Transport = "IPv6"
)

// LogTarget is the logging destination (spec §6 "-l s|f<path>").
type LogTarget struct {
	Syslog bool   `yaml:"syslog,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// Config is the backend daemon's full configuration.
type Config struct {
	// ConfigFile is the "-f <config-file>" path this Config was loaded
	// from; retained so it can be logged and reloaded.
	ConfigFile string `yaml:"-"`

	DataDir      string    `yaml:"data-dir" json:"data-dir"`
	StartupMode  string    `yaml:"startup-mode,omitempty" json:"startup-mode,omitempty"`
	ExtraXMLFile string    `yaml:"extra-xml-file,omitempty" json:"extra-xml-file,omitempty"`
	FailsafeFile string    `yaml:"failsafe-file,omitempty" json:"failsafe-file,omitempty"`
	Log          LogTarget `yaml:"log,omitempty" json:"log,omitempty"`
	DebugLevel   int       `yaml:"debug-level,omitempty" json:"debug-level,omitempty"`

	Transport     Transport `yaml:"transport,omitempty" json:"transport,omitempty"`
	SocketAddress string    `yaml:"socket-address,omitempty" json:"socket-address,omitempty"`

	// PrivilegedSocketAddress is a second unix socket, created with a
	// more restrictive mode, on which every session is opened privileged
	// (able to issue kill-session). Only meaningful for TransportUnix —
	// privilege here rests on filesystem permissions restricting who can
	// connect, mirroring original_source's group-restricted CLICON_SOCK,
	// which has no analogue over a bare TCP transport.
	PrivilegedSocketAddress string `yaml:"privileged-socket-address,omitempty" json:"privileged-socket-address,omitempty"`

	Autolock bool `yaml:"autolock,omitempty" json:"autolock,omitempty"`

	RestconfAddress   string `yaml:"restconf-address,omitempty" json:"restconf-address,omitempty"`
	PrometheusAddress string `yaml:"prometheus-address,omitempty" json:"prometheus-address,omitempty"`
}

const (
	defaultDataDir        = "/var/lib/clixon-engine"
	defaultSocketAddress  = "/var/run/clixon-engine.sock"
	defaultRestconfAddr   = ":8080"
	defaultPrometheusAddr = ":9090"
)

// New reads file (expanding a leading "~") and returns a defaulted
// Config. An empty
// file produces an all-defaults Config, matching pkg/config's
// New("") contract.
func New(file string) (*Config, error) {
	c := &Config{ConfigFile: file}
	if file != "" {
		expanded, err := homedir.Expand(file)
		if err != nil {
			return nil, fmt.Errorf("expand config path %s: %w", file, err)
		}
		b, err := os.ReadFile(expanded)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", file, err)
		}
	}
	if err := c.validateSetDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validateSetDefaults() error {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.StartupMode == "" {
		c.StartupMode = "startup"
	}
	switch c.StartupMode {
	case "none", "init", "startup", "running", "failsafe":
	default:
		return fmt.Errorf("unknown startup mode %q", c.StartupMode)
	}

	if c.Transport == "" {
		c.Transport = TransportUnix
	}
	switch c.Transport {
	case TransportUnix, TransportIPv4, TransportIPv6:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.SocketAddress == "" {
		c.SocketAddress = defaultSocketAddress
	}
	if c.PrivilegedSocketAddress == "" && c.Transport == TransportUnix {
		c.PrivilegedSocketAddress = c.SocketAddress + ".priv"
	}

	if c.Log.Syslog && c.Log.File != "" {
		return fmt.Errorf("log target cannot be both syslog and file")
	}

	if c.RestconfAddress == "" {
		c.RestconfAddress = defaultRestconfAddr
	}
	if c.PrometheusAddress == "" {
		c.PrometheusAddress = defaultPrometheusAddr
	}
	return nil
}
