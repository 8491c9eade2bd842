package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/exchange/coinbase"
	"github.com/lukehollenback/neutrino/stream"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRetryAttempts        = 5
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 30 * time.Second
)

//
// Config holds every setting that the coordinator needs. The zero value is not usable; start from
// Default() and override from there.
//
// NOTE ~> Key, Secret, and Passphrase are only ever handed to coinbase.NewCredentials. Never log
//  a Config.
//
type Config struct {
	Key        string `yaml:"key"`
	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`

	RESTBaseURL string `yaml:"rest_base_url"`
	WSBaseURL   string `yaml:"ws_base_url"`

	MaxRecordsPerCandleRequest int           `yaml:"max_records_per_candle_request"`
	DefaultTimeout             time.Duration `yaml:"default_timeout"`
	HandshakeTimeout           time.Duration `yaml:"handshake_timeout"`
	StreamBuffer               int           `yaml:"stream_buffer"`

	RetryAttempts        int           `yaml:"retry_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`

	//
	// Streams are configured on the coordinator, but not started, as soon as it is created.
	//
	Streams map[string]stream.Subscription `yaml:"streams"`
}

//
// Default returns a configuration that talks to the production exchange without credentials.
//
func Default() Config {
	return Config{
		RESTBaseURL:                coinbase.BaseURL,
		WSBaseURL:                  coinbase.FeedURL,
		MaxRecordsPerCandleRequest: constants.MaxCandleRequest,
		DefaultTimeout:             constants.DefaultTimeout,
		HandshakeTimeout:           constants.DefaultHandshakeTimeout,
		StreamBuffer:               constants.DefaultStreamBuffer,
		RetryAttempts:              DefaultRetryAttempts,
		RetryInitialInterval:       DefaultRetryInitialInterval,
		RetryMaxInterval:           DefaultRetryMaxInterval,
	}
}

//
// Load reads the YAML file at the provided path over the defaults and validates the result. Keys
// that the file leaves out keep their default values.
//
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := Parse(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

//
// Parse decodes YAML into the provided configuration, leaving untouched any key the document does
// not mention, and then validates it.
//
func Parse(raw []byte, cfg *Config) error {
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	return cfg.Validate()
}

func (o Config) Validate() error {
	var errs []error

	//
	// Credentials are all-or-nothing. Without them only public endpoints and unauthenticated
	// streams can be used.
	//
	set := 0
	for _, v := range []string{o.Key, o.Secret, o.Passphrase} {
		if v != "" {
			set++
		}
	}

	if set != 0 && set != 3 {
		errs = append(errs, errors.New("key, secret, and passphrase must be provided together"))
	}

	if err := validateURL(o.RESTBaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("rest_base_url: %w", err))
	}

	if err := validateURL(o.WSBaseURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("ws_base_url: %w", err))
	}

	if o.MaxRecordsPerCandleRequest <= 0 {
		errs = append(errs, errors.New("max_records_per_candle_request must be positive"))
	}

	if o.DefaultTimeout < 0 || o.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}

	if o.StreamBuffer <= 0 {
		errs = append(errs, errors.New("stream_buffer must be positive"))
	}

	if o.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry_attempts cannot be negative"))
	}

	if o.RetryInitialInterval <= 0 || o.RetryMaxInterval < o.RetryInitialInterval {
		errs = append(errs, errors.New("retry intervals must be positive with the maximum no less than the initial"))
	}

	for name, sub := range o.Streams {
		if name == "" {
			errs = append(errs, errors.New("streams cannot have an empty name"))

			continue
		}

		if err := sub.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stream %q: %w", name, err))
		}

		if sub.Authenticate && set != 3 {
			errs = append(errs, fmt.Errorf("stream %q authenticates but no credentials are configured", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return nil
}

//
// Credentials wraps the configured API key set.
//
func (o Config) Credentials() coinbase.Credentials {
	return coinbase.NewCredentials(o.Key, o.Secret, o.Passphrase)
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme && parsed.Host != "" {
			return nil
		}
	}

	return fmt.Errorf("%q must be an absolute %s URL", raw, schemes)
}
