package configuration

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v2"
)

// configStruct is a canonical example configuration, which should map to configYamlV0_1
var configStruct = Configuration{
	Version: "0.1",
	Log: Log{
		Level:  "info",
		Fields: map[string]interface{}{"environment": "test"},
	},
	Portal: Portal{
		URL:      "https://portal.example.com",
		APIKey:   "key",
		RetryMax: 3,
		Download: Parameters{"cachesize": 64},
		DB:       Parameters{"timeout": 10},
	},
	Notifications: Notifications{
		Endpoints: []Endpoint{
			{
				Name: "endpoint-1",
				URL:  "http://example.com",
				Headers: http.Header{
					"Authorization": []string{"Bearer <example>"},
				},
				Timeout:        time.Second,
				IgnoredActions: []string{"delete"},
			},
		},
	},
	HTTP: HTTP{
		Addr:          ":8080",
		MaxUploadSize: 1 << 20,
		DrainTimeout:  5 * time.Second,
		Metrics:       true,
	},
	Store: Store{
		"redis": Parameters{
			"prefix": "skynet:",
		},
	},
	Redis: Redis{
		Addr:         "localhost:6379",
		Username:     "alice",
		Password:     "123456",
		DB:           1,
		DialTimeout:  time.Millisecond * 10,
		ReadTimeout:  time.Millisecond * 10,
		WriteTimeout: time.Millisecond * 10,
	},
}

// configYamlV0_1 is a Version 0.1 yaml document representing configStruct
const configYamlV0_1 = `
version: 0.1
log:
  level: info
  fields:
    environment: test
portal:
  url: https://portal.example.com
  apikey: key
  retrymax: 3
  download:
    cachesize: 64
  db:
    timeout: 10
notifications:
  endpoints:
    - name: endpoint-1
      url:  http://example.com
      headers:
        Authorization: [Bearer <example>]
      timeout: 1s
      ignoredactions:
        - delete
http:
  addr: :8080
  maxuploadsize: 1048576
  draintimeout: 5s
  metrics: true
store:
  redis:
    prefix: "skynet:"
redis:
  addr: localhost:6379
  username: alice
  password: 123456
  db: 1
  dialtimeout: 10ms
  readtimeout: 10ms
  writetimeout: 10ms
`

// minimalConfigYamlV0_1 leaves everything but the version to the defaults
const minimalConfigYamlV0_1 = `
version: 0.1
store: inmemory
`

type ConfigSuite struct {
	suite.Suite
	expectedConfig *Configuration
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (suite *ConfigSuite) SetupTest() {
	suite.expectedConfig = copyConfig(configStruct)
}

// TestMarshalRoundtrip validates that configStruct can be marshaled and
// unmarshaled without changing any parameters
func (suite *ConfigSuite) TestMarshalRoundtrip() {
	configBytes, err := yaml.Marshal(suite.expectedConfig)
	suite.Require().NoError(err)
	config, err := Parse(bytes.NewReader(configBytes))
	suite.T().Log(string(configBytes))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseSimple validates that configYamlV0_1 can be parsed into a struct
// matching configStruct
func (suite *ConfigSuite) TestParseSimple() {
	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseDefaults validates the defaults filled in for a minimal document
func (suite *ConfigSuite) TestParseDefaults() {
	config, err := Parse(bytes.NewReader([]byte(minimalConfigYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(Loglevel("info"), config.Log.Level)
	suite.Require().Equal(DefaultPortalURL, config.Portal.URL)
	suite.Require().Equal(StoreInMemory, config.Store.Type())
	suite.Require().Empty(config.Store.Parameters())

	config, err = Parse(bytes.NewReader([]byte("version: 0.1")))
	suite.Require().NoError(err)
	suite.Require().Equal(StoreInMemory, config.Store.Type())
}

// TestParseWithEnvOverrides validates that environment variables replace
// scalar fields
func (suite *ConfigSuite) TestParseWithEnvOverrides() {
	suite.expectedConfig.Log.Level = "debug"
	suite.expectedConfig.Portal.URL = "http://localhost:9980"
	suite.expectedConfig.Portal.RetryMax = -1
	suite.expectedConfig.HTTP.DrainTimeout = time.Minute
	suite.expectedConfig.Redis.DB = 4

	suite.T().Setenv("SKYNET_LOG_LEVEL", "DEBUG")
	suite.T().Setenv("SKYNET_PORTAL_URL", "http://localhost:9980")
	suite.T().Setenv("SKYNET_PORTAL_RETRYMAX", "-1")
	suite.T().Setenv("SKYNET_HTTP_DRAINTIMEOUT", "1m")
	suite.T().Setenv("SKYNET_REDIS_DB", "4")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithEnvParameters validates that providing environment variables
// that change and add to parameter maps change and add parameters
func (suite *ConfigSuite) TestParseWithEnvParameters() {
	suite.expectedConfig.Store.setParameter("prefix", "other:")
	suite.expectedConfig.Portal.Download["cachesize"] = 8
	suite.expectedConfig.Portal.Upload = Parameters{"endpointpath": "/upload"}

	suite.T().Setenv("SKYNET_STORE_REDIS_PREFIX", "other:")
	suite.T().Setenv("SKYNET_PORTAL_DOWNLOAD_CACHESIZE", "8")
	suite.T().Setenv("SKYNET_PORTAL_UPLOAD_ENDPOINTPATH", "/upload")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithDifferentEnvStore validates that providing an environment
// variable that changes the store type drops the yaml-defined parameters
func (suite *ConfigSuite) TestParseWithDifferentEnvStore() {
	suite.expectedConfig.Store = Store{"inmemory": Parameters{}}

	suite.T().Setenv("SKYNET_STORE", "inmemory")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithEnvEndpoint validates that list elements can be overridden
// by index
func (suite *ConfigSuite) TestParseWithEnvEndpoint() {
	suite.expectedConfig.Notifications.Endpoints[0].URL = "http://other.example.com"
	suite.expectedConfig.Notifications.Endpoints[0].Threshold = 3

	suite.T().Setenv("SKYNET_NOTIFICATIONS_ENDPOINTS_0_URL", "http://other.example.com")
	suite.T().Setenv("SKYNET_NOTIFICATIONS_ENDPOINTS_0_THRESHOLD", "3")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseInvalid validates documents that must be rejected
func (suite *ConfigSuite) TestParseInvalid() {
	for name, doc := range map[string]string{
		"unsupported version":  "version: 0.2",
		"missing version":      "log:\n  level: info",
		"bad loglevel":         "version: 0.1\nlog:\n  level: loud",
		"unknown store":        "version: 0.1\nstore: s3",
		"two stores":           "version: 0.1\nstore:\n  inmemory: {}\n  redis: {}",
		"redis without addr":   "version: 0.1\nstore: redis",
		"endpoint without url": "version: 0.1\nnotifications:\n  endpoints:\n    - name: x",
	} {
		suite.Run(name, func() {
			_, err := Parse(bytes.NewReader([]byte(doc)))
			suite.Require().Error(err)
		})
	}

	suite.T().Setenv("SKYNET_REDIS_DB", "not a number")
	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

func copyConfig(config Configuration) *Configuration {
	configCopy := new(Configuration)

	configCopy.Version = MajorMinorVersion(config.Version.Major(), config.Version.Minor())
	configCopy.Log = config.Log
	configCopy.Log.Fields = make(map[string]interface{}, len(config.Log.Fields))
	for k, v := range config.Log.Fields {
		configCopy.Log.Fields[k] = v
	}

	configCopy.Portal = config.Portal
	configCopy.Portal.Upload = copyParameters(config.Portal.Upload)
	configCopy.Portal.Download = copyParameters(config.Portal.Download)
	configCopy.Portal.DB = copyParameters(config.Portal.DB)

	configCopy.Notifications = Notifications{Endpoints: []Endpoint{}}
	for _, v := range config.Notifications.Endpoints {
		v.Headers = v.Headers.Clone()
		v.IgnoredActions = append([]string(nil), v.IgnoredActions...)
		configCopy.Notifications.Endpoints = append(configCopy.Notifications.Endpoints, v)
	}

	configCopy.Tracing = config.Tracing
	configCopy.HTTP = config.HTTP
	configCopy.Redis = config.Redis

	configCopy.Store = Store{config.Store.Type(): copyParameters(config.Store.Parameters())}
	return configCopy
}

func copyParameters(params Parameters) Parameters {
	if params == nil {
		return nil
	}
	out := make(Parameters, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
