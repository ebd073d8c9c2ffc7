package config

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment key hvol reads
	EnvPrefix = "HVOL"

	// ConnectorEnvKey selects the default connector:
	// "<name-or-value> [info-string]"
	ConnectorEnvKey = "vol_connector"
)

// ConnectorEnvVar is the full name of the default-connector variable
const ConnectorEnvVar = "HVOL_VOL_CONNECTOR"

// newViper returns a viper instance bound to the HVOL_ environment
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

// FromEnv returns the defaults overridden by HVOL_* environment variables:
//
//	HVOL_VOL_CONNECTOR      default connector and info
//	HVOL_LOGGING_LEVEL      log level
//	HVOL_LOGGING_ENCODING   json or console
//	HVOL_TRACING_ENABLED    export spans to stdout
//	HVOL_NATIVE_SNAPSHOT_DIR  native snapshot directory
//
// An HVOL_VOL_CONNECTOR that is set but empty or unparsable is an error; an
// absent one leaves the native connector selected.
func FromEnv() (*Config, error) {
	v := newViper()
	cfg := NewConfig()

	if v.IsSet(ConnectorEnvKey) {
		cc, err := ParseConnectorString(v.GetString(ConnectorEnvKey))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid "+ConnectorEnvVar)
		}
		cfg.Connector = cc
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("logging.encoding"); s != "" {
		cfg.Logging.Encoding = s
	}
	if v.IsSet("tracing.enabled") {
		cfg.Tracing.Enabled = v.GetBool("tracing.enabled")
	}
	if s := v.GetString("native.snapshot_dir"); s != "" {
		cfg.Native.SnapshotDir = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConnectorString parses "<name-or-value> [info-string]". The first
// whitespace-separated token names the connector; a token made only of digits
// is a connector value. The rest, trimmed, is the info string.
func ParseConnectorString(s string) (ConnectorConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ConnectorConfig{}, errors.New(errors.ErrorTypeConfig, "connector string is empty")
	}

	token, info := s, ""
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		token, info = s[:i], strings.TrimSpace(s[i:])
	}

	if isDigits(token) {
		v, err := strconv.Atoi(token)
		if err != nil {
			return ConnectorConfig{}, errors.Wrap(err, errors.ErrorTypeConfig, "connector value out of range").
				WithDetail("value", token)
		}
		return ConnectorConfig{Value: v, Info: info}, nil
	}

	for i, r := range token {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return ConnectorConfig{}, errors.Newf(errors.ErrorTypeConfig, "connector name %q must start with a letter", token)
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return ConnectorConfig{}, errors.Newf(errors.ErrorTypeConfig, "invalid character %q in connector name %q", r, token)
		}
	}
	return ConnectorConfig{Name: token, Value: -1, Info: info}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
