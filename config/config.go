package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config defines the top level configuration for a txfetch node.
type Config struct {
	// LogLevel is the minimum level emitted by the logger: "debug",
	// "info" or "error".
	LogLevel string `mapstructure:"log_level"`

	// PrometheusListenAddr, when non-empty, is the address the metrics
	// endpoint binds to, e.g. ":26660".
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	Fetch *FetchConfig `mapstructure:"fetch"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Fetch:    DefaultFetchConfig(),
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	switch cfg.LogLevel {
	case "debug", "info", "error":
	default:
		return errors.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if err := cfg.Fetch.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [fetch] section")
	}
	return nil
}

//-----------------------------------------------------------------------------
// FetchConfig

// FetchConfig defines the configuration for the transaction download
// manager built around the request tracker.
type FetchConfig struct {
	// NonPreferredDelay is how long announcements from non-preferred
	// peers wait before becoming requestable, giving preferred peers a
	// head start on the same transaction.
	NonPreferredDelay time.Duration `mapstructure:"non_preferred_delay"`

	// OverloadedPeerDelay is the extra wait applied to announcements from
	// peers already at their in-flight cap.
	OverloadedPeerDelay time.Duration `mapstructure:"overloaded_peer_delay"`

	// RequestTimeout is how long an outbound request may stay
	// unanswered before it expires and another peer is tried.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxInFlightPerPeer caps simultaneous outbound requests to one peer.
	MaxInFlightPerPeer int `mapstructure:"max_in_flight_per_peer"`

	// MaxPeerAnnouncements caps how many announcements one peer may have
	// tracked at a time; announcements past the cap are dropped.
	MaxPeerAnnouncements int `mapstructure:"max_peer_announcements"`

	// RecentTxCacheSize bounds the cache of recently received
	// transactions used to shed late duplicate announcements.
	RecentTxCacheSize int `mapstructure:"recent_tx_cache_size"`
}

// DefaultFetchConfig returns a default configuration for the download
// manager.
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		NonPreferredDelay:    2 * time.Second,
		OverloadedPeerDelay:  2 * time.Second,
		RequestTimeout:       60 * time.Second,
		MaxInFlightPerPeer:   100,
		MaxPeerAnnouncements: 5000,
		RecentTxCacheSize:    10000,
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *FetchConfig) ValidateBasic() error {
	if cfg == nil {
		return errors.New("fetch config is nil")
	}
	if cfg.NonPreferredDelay < 0 {
		return errors.New("non_preferred_delay can't be negative")
	}
	if cfg.OverloadedPeerDelay < 0 {
		return errors.New("overloaded_peer_delay can't be negative")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if cfg.MaxInFlightPerPeer <= 0 {
		return errors.New("max_in_flight_per_peer must be positive")
	}
	if cfg.MaxPeerAnnouncements <= 0 {
		return errors.New("max_peer_announcements must be positive")
	}
	if cfg.RecentTxCacheSize <= 0 {
		return errors.New("recent_tx_cache_size must be positive")
	}
	return nil
}
