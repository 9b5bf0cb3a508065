package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studybuddy/internal/speech"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "STUDYBUDDY"

// Config keys, also readable as STUDYBUDDY_<KEY>.
const (
	keyAPIURL          = "api_url"
	keyToken           = "token"
	keyTTSURL          = "tts_url"
	keyVoice           = "voice"
	keyFallbackCommand = "fallback_command"
	keyPlayerCommand   = "player_command"
	keyTimeout         = "timeout"
)

type cliConfig struct {
	APIURL          string
	Token           string
	TTSURL          string
	Voice           string
	FallbackCommand string
	PlayerCommand   string
	Timeout         time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault(keyAPIURL, "http://localhost:8080")
	v.SetDefault(keyVoice, speech.DefaultVoiceID)
	v.SetDefault(keyFallbackCommand, "espeak-ng")
	v.SetDefault(keyPlayerCommand, "mpg123 -q")
	v.SetDefault(keyTimeout, 30*time.Second)
	return v
}

// bindFlags maps --api-url style flags onto their config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, flag := range map[string]string{
		keyAPIURL: "api-url",
		keyToken:  "token",
		keyVoice:  "voice",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// readConfigFile loads path, or ~/.studybuddy.yaml when path is empty. A
// missing default file is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "studybuddy"))
	v.SetConfigName(".studybuddy")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (cliConfig, error) {
	cfg := cliConfig{
		APIURL:          v.GetString(keyAPIURL),
		Token:           v.GetString(keyToken),
		TTSURL:          v.GetString(keyTTSURL),
		Voice:           v.GetString(keyVoice),
		FallbackCommand: v.GetString(keyFallbackCommand),
		PlayerCommand:   v.GetString(keyPlayerCommand),
		Timeout:         v.GetDuration(keyTimeout),
	}
	if cfg.Token == "" {
		return cfg, errors.New("no token configured: set STUDYBUDDY_TOKEN or pass --token")
	}
	if _, ok := speech.LookupVoice(cfg.Voice); !ok {
		return cfg, fmt.Errorf("unknown voice %q", cfg.Voice)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}
