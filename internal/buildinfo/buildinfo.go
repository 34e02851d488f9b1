// Package buildinfo holds build-time constants.
package buildinfo

// DefaultConfigPath is the config file path used when -c is not given.
const DefaultConfigPath = "/etc/pmtrd.conf"

// Version is overridable via -ldflags at build time.
var Version = "dev"
