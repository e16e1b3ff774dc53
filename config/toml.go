package config

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// DefaultFilePerm is the permissions used when writing the config file.
const DefaultFilePerm = 0o600

// configTemplate holds the parsed TOML template used to generate the config file.
var configTemplate *template.Template

func init() {
	var err error
	if configTemplate, err = template.New("configFileTemplate").Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		return fmt.Errorf("rendering config template: %w", err)
	}
	return os.WriteFile(configFilePath, buffer.Bytes(), DefaultFilePerm)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# Minimum log level: "debug", "info" or "error"
log_level = "{{ .LogLevel }}"

# When not empty, Prometheus metrics are served at this address
prometheus_listen_addr = "{{ .PrometheusListenAddr }}"

#######################################################
###        Transaction Download Configuration       ###
#######################################################
[fetch]

# How long announcements from non-preferred peers wait before becoming
# requestable
non_preferred_delay = "{{ .Fetch.NonPreferredDelay }}"

# Extra wait applied to announcements from peers already at their
# in-flight cap
overloaded_peer_delay = "{{ .Fetch.OverloadedPeerDelay }}"

# How long an outbound request may stay unanswered before another peer
# is tried
request_timeout = "{{ .Fetch.RequestTimeout }}"

# Maximum simultaneous outbound requests to one peer
max_in_flight_per_peer = {{ .Fetch.MaxInFlightPerPeer }}

# Maximum announcements tracked for one peer at a time
max_peer_announcements = {{ .Fetch.MaxPeerAnnouncements }}

# Size of the recently-received transaction cache
recent_tx_cache_size = {{ .Fetch.RecentTxCacheSize }}
`
