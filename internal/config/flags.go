package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the raw command-line overrides for the daemon entrypoint
// (spec §6's dispatcher-host CLI surface), parsed separately from the
// YAML Config so a flag can override a file value after New loads it.
type Flags struct {
	ConfigFile     string
	StartupMode    string
	ExtraXMLFile   string
	LogSyslog      bool
	LogFile        string
	DebugLevel     int
	Transport      string
	SocketAddr     string
	PrivSocketAddr string
}

// RegisterFlags binds fs to a fresh Flags, matching a pflag-based
// main.go flag set built one option at a time rather than a generated
// struct tag binder.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.ConfigFile, "config", "f", "", "configuration file (required)")
	fs.StringVarP(&f.StartupMode, "startup-mode", "s", "", "startup mode: none|init|startup|running|failsafe")
	fs.StringVarP(&f.ExtraXMLFile, "extra-xml", "c", "", "extra XML file merged into running at startup")
	fs.BoolVarP(&f.LogSyslog, "log-syslog", "l", false, "log to syslog instead of a file")
	fs.StringVar(&f.LogFile, "log-file", "", "log file path")
	fs.IntVarP(&f.DebugLevel, "debug", "D", 0, "debug level")
	fs.StringVarP(&f.Transport, "transport", "a", "", "transport: UNIX|IPv4|IPv6")
	fs.StringVarP(&f.SocketAddr, "socket-address", "u", "", "socket address for the selected transport")
	fs.StringVarP(&f.PrivSocketAddr, "privileged-socket-address", "p", "", "privileged socket address (sessions opened here may kill-session)")
	return f
}

// Apply overlays non-zero flag values onto c, giving explicit
// command-line flags precedence over the config file (spec §6 CLI
// surface takes precedence the same way main.go applies flags after
// config load).
func (f *Flags) Apply(c *Config) {
	if f.StartupMode != "" {
		c.StartupMode = f.StartupMode
	}
	if f.ExtraXMLFile != "" {
		c.ExtraXMLFile = f.ExtraXMLFile
	}
	if f.LogSyslog {
		c.Log.Syslog = true
		c.Log.File = ""
	}
	if f.LogFile != "" {
		c.Log.File = f.LogFile
		c.Log.Syslog = false
	}
	if f.DebugLevel != 0 {
		c.DebugLevel = f.DebugLevel
	}
	if f.Transport != "" {
		c.Transport = Transport(f.Transport)
	}
	if f.SocketAddr != "" {
		c.SocketAddress = f.SocketAddr
	}
	if f.PrivSocketAddr != "" {
		c.PrivilegedSocketAddress = f.PrivSocketAddr
	}
}
