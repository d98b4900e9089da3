package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location when no path is given.
const ConfigPathEnv = "CACHEBUSTER_CONFIG_FILE"

// DefaultConfigFile is read from the working directory when nothing else is specified.
const DefaultConfigFile = "config.json"

// ErrNotFound reports a missing configuration file.
var ErrNotFound = errors.New("config file not found")

// requiredKeys must be present in the file (or the environment).
var requiredKeys = []string{
	"allowed_role_ids",
	"allowed_guild_ids",
	"cf_service_token",
	"zone_identifier",
	"bot_token",
	"url_prefix",
	"command_prefix",
}

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
	path  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.NewWithOptions(viper.WithCodecRegistry(newCodecRegistry()))
	v.SetConfigType("json")

	v.SetEnvPrefix("CACHEBUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		// Bound keys take part in Unmarshal even when absent from the file.
		_ = v.BindEnv(key)
	}

	return &Loader{viper: v}
}

// Load reads, decodes, validates and freezes the configuration.
// If configPath is empty, CACHEBUSTER_CONFIG_FILE and then ./config.json are used.
// Every failure is a *Error.
func (l *Loader) Load(configPath string) (*Config, error) {
	path, err := ResolvePath(configPath)
	if err != nil {
		return nil, &Error{Path: configPath, Op: "resolve", Err: err}
	}
	l.path = path

	l.viper.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		l.viper.SetConfigType(ext)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Path: path, Op: "read", Err: ErrNotFound}
		}
		return nil, &Error{Path: path, Op: "read", Err: err}
	}

	var missing ValidationErrors
	for _, key := range requiredKeys {
		if !l.viper.IsSet(key) {
			missing = append(missing, ValidationError{Field: key, Message: "is missing"})
		}
	}
	if len(missing) > 0 {
		return nil, &Error{Path: path, Op: "validate", Err: missing}
	}

	cfg := DefaultConfig()
	if err := l.viper.Unmarshal(cfg, strictDecoding); err != nil {
		return nil, &Error{Path: path, Op: "decode", Err: err}
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, &Error{Path: path, Op: "validate", Err: err}
	}

	return cfg.Freeze(), nil
}

// Path returns the resolved path of the last Load call.
func (l *Loader) Path() string {
	return l.path
}

// strictDecoding turns off weak typing so that, for example, a numeric
// bot_token is rejected. Numeric Discord IDs are converted to exact strings by
// jsonCodec before decoding. String values are still converted for int and bool fields so environment
// overrides keep working.
func strictDecoding(dc *mapstructure.DecoderConfig) {
	dc.WeaklyTypedInput = false
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToScalarHook,
	)
}

func stringToScalarHook(from reflect.Kind, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	switch to {
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as int: %w", raw, err)
		}
		return n, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as bool: %w", raw, err)
		}
		return b, nil
	default:
		return data, nil
	}
}

// ResolvePath returns the absolute config path for configPath, falling back
// to CACHEBUSTER_CONFIG_FILE and then ./config.json.
func ResolvePath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if path == "" {
		path = DefaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
