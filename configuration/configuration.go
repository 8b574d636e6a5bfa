// Package configuration parses the versioned YAML configuration shared by the
// skynet command line client and the development portal.
package configuration

import (
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// DefaultPortalURL is the portal used when none is configured.
const DefaultPortalURL = "https://siasky.net"

// Configuration is a versioned skynet configuration, intended to be provided
// by a yaml file, and optionally modified by environment variables.
//
// Note that yaml field names should never include _ characters, since this is
// the separator used in environment variable names.
type Configuration struct {
	// Version is the version which defines the format of the rest of the configuration
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Portal configures the client side: which portal to talk to and how.
	Portal Portal `yaml:"portal"`

	// Notifications specifies configuration about various endpoints
	// receiving an event for every committed SkyDB write.
	Notifications Notifications `yaml:"notifications,omitempty"`

	// Tracing configures OpenTelemetry export.
	Tracing Tracing `yaml:"tracing,omitempty"`

	// HTTP contains configuration parameters for the development portal's
	// http interface.
	HTTP HTTP `yaml:"http,omitempty"`

	// Store is the development portal's backing store, either inmemory or
	// redis.
	Store Store `yaml:"store,omitempty"`

	// Redis configures the redis connection used by the redis store.
	Redis Redis `yaml:"redis,omitempty"`
}

// Log configures logging.
type Log struct {
	// AccessLog configures access logging of the development portal.
	AccessLog struct {
		// Disabled disables access logging.
		Disabled bool `yaml:"disabled,omitempty"`
	} `yaml:"accesslog,omitempty"`

	// Level is the granularity at which operations are logged.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default formatter with another. Options
	// include "text" and "json".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows users to specify static string fields to include in
	// the logger context.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	// ReportCaller allows user to configure the log to report the caller
	ReportCaller bool `yaml:"reportcaller,omitempty"`
}

// Portal configures the client.
type Portal struct {
	// URL is the portal base URL.
	URL string `yaml:"url,omitempty"`

	// APIKey is sent with every request when set.
	APIKey string `yaml:"apikey,omitempty"`

	// CustomCookie is sent as the Cookie header when set.
	CustomCookie string `yaml:"customcookie,omitempty"`

	// UserAgent overrides the default user agent.
	UserAgent string `yaml:"useragent,omitempty"`

	// RetryMax is the number of retries of failed requests. Negative
	// disables retries.
	RetryMax int `yaml:"retrymax,omitempty"`

	// Timeout bounds each request attempt. Negative disables it.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// WriteTimeout bounds a SkyDB write once its entry is locked.
	WriteTimeout time.Duration `yaml:"writetimeout,omitempty"`

	// Upload, Download and DB hold option parameters for the uploader,
	// the downloader and SkyDB operations.
	Upload   Parameters `yaml:"upload,omitempty"`
	Download Parameters `yaml:"download,omitempty"`
	DB       Parameters `yaml:"db,omitempty"`
}

// Notifications configures multiple http endpoints.
type Notifications struct {
	// Endpoints is a list of http configurations for endpoints that
	// respond to webhook notifications.
	Endpoints []Endpoint `yaml:"endpoints,omitempty"`
}

// Endpoint describes the configuration of an http webhook notification
// endpoint.
type Endpoint struct {
	Name           string        `yaml:"name"`           // identifies the endpoint in the client.
	Disabled       bool          `yaml:"disabled"`       // disables the endpoint
	URL            string        `yaml:"url"`            // post url for the endpoint.
	Headers        http.Header   `yaml:"headers"`        // static headers that should be added to all requests
	Timeout        time.Duration `yaml:"timeout"`        // HTTP timeout
	Threshold      int           `yaml:"threshold"`      // circuit breaker threshold before backing off on failure
	Backoff        time.Duration `yaml:"backoff"`        // backoff duration
	IgnoredActions []string      `yaml:"ignoredactions"` // events with these actions are not published
}

// Tracing configures OpenTelemetry.
type Tracing struct {
	// Enabled turns on exporting.
	Enabled bool `yaml:"enabled,omitempty"`

	// SamplingRatio is the fraction of traces sampled.
	SamplingRatio float64 `yaml:"samplingratio,omitempty"`
}

// HTTP configures the development portal's http server.
type HTTP struct {
	// Addr specifies the bind address for the portal.
	Addr string `yaml:"addr,omitempty"`

	// APIKey, when set, is required on every request.
	APIKey string `yaml:"apikey,omitempty"`

	// MaxUploadSize bounds uploaded files in bytes.
	MaxUploadSize int64 `yaml:"maxuploadsize,omitempty"`

	// DrainTimeout is the amount of time to wait for connections to drain
	// before shutting down when the portal receives a stop signal.
	DrainTimeout time.Duration `yaml:"draintimeout,omitempty"`

	// Metrics exposes prometheus metrics on /metrics.
	Metrics bool `yaml:"metrics,omitempty"`
}

// Redis configures the redis pool used by the redis store.
type Redis struct {
	// Addr specifies the redis instance available to the application.
	Addr string `yaml:"addr,omitempty"`

	// Username string to use when making a connection.
	Username string `yaml:"username,omitempty"`

	// Password string to use when making a connection.
	Password string `yaml:"password,omitempty"`

	// DB specifies the database to connect to on the redis instance.
	DB int `yaml:"db,omitempty"`

	DialTimeout  time.Duration `yaml:"dialtimeout,omitempty"`  // timeout for connect
	ReadTimeout  time.Duration `yaml:"readtimeout,omitempty"`  // timeout for reads of data
	WriteTimeout time.Duration `yaml:"writetimeout,omitempty"` // timeout for writes of data

	// Pool configures the behavior of the redis connection pool.
	Pool struct {
		// MaxIdle sets the maximum number of idle connections.
		MaxIdle int `yaml:"maxidle,omitempty"`

		// MaxActive sets the maximum number of connections that should be
		// opened before blocking a connection request.
		MaxActive int `yaml:"maxactive,omitempty"`

		// IdleTimeout sets the amount time to wait before closing
		// inactive connections.
		IdleTimeout time.Duration `yaml:"idletimeout,omitempty"`
	} `yaml:"pool,omitempty"`
}

// CurrentVersion is the most recent Version that can be parsed
var CurrentVersion = MajorMinorVersion(0, 1)

// Loglevel is the level at which operations are logged
// This can be error, warn, info, or debug
type Loglevel string

// UnmarshalYAML implements the yaml.Umarshaler interface
// Unmarshals a string into a Loglevel, lowercasing the string and validating that it represents a
// valid loglevel
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var loglevelString string
	err := unmarshal(&loglevelString)
	if err != nil {
		return err
	}

	loglevelString = strings.ToLower(loglevelString)
	switch loglevelString {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", loglevelString)
	}

	*loglevel = Loglevel(loglevelString)
	return nil
}

// Parameters defines a key-value parameters mapping
type Parameters map[string]interface{}

// Store defines the configuration for the development portal's store.
type Store map[string]Parameters

// Store types.
const (
	StoreInMemory = "inmemory"
	StoreRedis    = "redis"
)

// Type returns the store type, such as inmemory or redis
func (store Store) Type() string {
	// Return only key in this map
	for k := range store {
		return k
	}
	return ""
}

// Parameters returns the Parameters map for a Store configuration
func (store Store) Parameters() Parameters {
	return store[store.Type()]
}

// setParameter changes the parameter at the provided key to the new value
func (store Store) setParameter(key string, value interface{}) {
	store[store.Type()][key] = value
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a single item map into a Store or a string into a Store type with no parameters
func (store *Store) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var storeMap map[string]Parameters
	err := unmarshal(&storeMap)
	if err == nil {
		if len(storeMap) > 1 {
			types := make([]string, 0, len(storeMap))
			for k := range storeMap {
				types = append(types, k)
			}
			return fmt.Errorf("must provide exactly one store type. Provided: %v", types)
		}
		*store = storeMap
		return nil
	}

	var storeType string
	err = unmarshal(&storeType)
	if err == nil {
		*store = Store{storeType: Parameters{}}
		return nil
	}

	return err
}

// MarshalYAML implements the yaml.Marshaler interface
func (store Store) MarshalYAML() (interface{}, error) {
	if store.Parameters() == nil {
		return store.Type(), nil
	}
	return map[string]Parameters(store), nil
}

// Parse parses an input configuration yaml document into a Configuration struct
//
// Environment variables may be used to override configuration parameters other than version,
// following the scheme below:
// Configuration.Abc may be replaced by the value of SKYNET_ABC,
// Configuration.Abc.Xyz may be replaced by the value of SKYNET_ABC_XYZ, and so forth
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("skynet", map[Version]reflect.Type{
		CurrentVersion: reflect.TypeOf(Configuration{}),
	})
	parsed, err := p.Parse(in)
	if err != nil {
		return nil, err
	}
	config := parsed.(*Configuration)
	if err := config.setDefaults(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults fills in unset values and rejects incomplete sections.
func (config *Configuration) setDefaults() error {
	if config.Log.Level == "" {
		config.Log.Level = Loglevel("info")
	}
	if config.Portal.URL == "" {
		config.Portal.URL = DefaultPortalURL
	}
	switch config.Store.Type() {
	case "":
		config.Store = Store{StoreInMemory: Parameters{}}
	case StoreInMemory:
	case StoreRedis:
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis store requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown store type %q", config.Store.Type())
	}
	for i, endpoint := range config.Notifications.Endpoints {
		if endpoint.URL == "" && !endpoint.Disabled {
			return fmt.Errorf("notification endpoint %d (%s) has no url", i, endpoint.Name)
		}
	}
	return nil
}
