package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// snowflakeLists are the keys holding Discord IDs. Numeric entries are kept
// as their exact decimal text, since a 64-bit snowflake does not survive a
// round trip through float64.
var snowflakeLists = map[string][]string{
	"": {"allowed_role_ids", "allowed_guild_ids"},
	"dispatch": {
		"owner_ids",
		"blocked_user_ids",
		"blocked_guild_ids",
		"blocked_channel_ids",
	},
}

// jsonCodec is viper's JSON codec with number precision preserved.
type jsonCodec struct{}

func newCodecRegistry() *viper.DefaultCodecRegistry {
	r := viper.NewCodecRegistry()
	_ = r.RegisterCodec("json", jsonCodec{})
	return r
}

func (jsonCodec) Encode(v map[string]any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (jsonCodec) Decode(b []byte, v map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}

	for section, keys := range snowflakeLists {
		target := v
		if section != "" {
			nested, ok := lookupFold(v, section).(map[string]any)
			if !ok {
				continue
			}
			target = nested
		}
		for _, key := range keys {
			if err := snowflakesToStrings(target, key); err != nil {
				return err
			}
		}
	}

	for key, value := range v {
		v[key] = normalizeNumbers(value)
	}
	return nil
}

func lookupFold(m map[string]any, key string) any {
	for k, value := range m {
		if strings.EqualFold(k, key) {
			return value
		}
	}
	return nil
}

func snowflakesToStrings(m map[string]any, key string) error {
	for k, value := range m {
		if !strings.EqualFold(k, key) {
			continue
		}
		list, ok := value.([]any)
		if !ok {
			continue
		}
		for i, item := range list {
			n, ok := item.(json.Number)
			if !ok {
				continue
			}
			if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
				return fmt.Errorf("%s[%d]: %s is not a Discord ID", k, i, n)
			}
			list[i] = n.String()
		}
	}
	return nil
}

// normalizeNumbers replaces the remaining json.Number values with the types
// encoding/json would have produced, so decode hooks and strict decoding see
// plain numbers.
func normalizeNumbers(value any) any {
	switch val := value.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return value
	}
}
