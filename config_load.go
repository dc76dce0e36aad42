package hireauth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: session.ttl is read from
// HIREAUTH_SESSION_TTL.
const EnvPrefix = "HIREAUTH"

// NewViper returns a viper instance preloaded with [DefaultConfig] and
// wired for HIREAUTH_* environment overrides. path may be empty.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, "", reflect.ValueOf(DefaultConfig()))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// LoadConfig reads path (yaml, json or toml; may be empty) on top of the
// defaults, applies environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return DecodeConfig(v)
}

// DecodeConfig unmarshals the settings held by v and validates them.
func DecodeConfig(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("nil viper instance")
	}
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// registerDefaults walks the mapstructure tags of cfg so every leaf key is
// known to viper; AutomaticEnv only overrides keys it knows about.
func registerDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct && field.Type.PkgPath() == rt.PkgPath() {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
