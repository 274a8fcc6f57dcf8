package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ConfigName = "leetbot"

type Config struct {
	// bot token issued by @BotFather, the process refuses to start without it
	TelegramToken string `mapstructure:"telegram_token" validate:"required"`

	// Seedr credentials; mirroring is disabled when either is empty
	SeedrUsername string `mapstructure:"seedr_username"`
	SeedrPassword string `mapstructure:"seedr_password"`

	LeetxBaseURL   string        `mapstructure:"leetx_base_url" validate:"required,url"`
	LeetxCachePath string        `mapstructure:"leetx_cache_path"`
	LeetxCacheTTL  time.Duration `mapstructure:"leetx_cache_ttl" validate:"gt=0"`

	SessionTTL     time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" validate:"gt=0"`

	TelegraphShortName   string `mapstructure:"telegraph_short_name" validate:"required"`
	TelegraphAccessToken string `mapstructure:"telegraph_access_token"`

	// when set, updates are received over HTTPS instead of long polling
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Port       string `mapstructure:"port" validate:"required,numeric"`

	Debug bool `mapstructure:"debug"`
}

var defaults = map[string]interface{}{
	"telegram_token":         "",
	"seedr_username":         "",
	"seedr_password":         "",
	"leetx_base_url":         "https://1337x.to",
	"leetx_cache_path":       ".leetx-cache",
	"leetx_cache_ttl":        500 * time.Second,
	"session_ttl":            time.Hour,
	"handler_timeout":        2 * time.Minute,
	"telegraph_short_name":   "1337x_bot",
	"telegraph_access_token": "",
	"webhook_url":            "",
	"port":                   "8080",
	"debug":                  false,
}

// flag name -> config key
var flagKeys = map[string]string{
	"debug":       "debug",
	"webhook-url": "webhook_url",
	"port":        "port",
	"cache-path":  "leetx_cache_path",
}

// MirrorEnabled reports whether Seedr credentials are present
func (c Config) MirrorEnabled() bool {
	return c.SeedrUsername != "" && c.SeedrPassword != ""
}

// Load reads the configuration. Priority: flags > environment (.env
// included) > leetbot.yaml in the working directory > defaults.
// flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	configFile := ""
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
		configFile, _ = flags.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, errors.Wrap(err, "unable to use config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to decode config")
	}

	return cfg, cfg.Validate()
}

// Validate checks config values and reports every invalid field at once
func (c Config) Validate() error {
	translateError := func(e validator.FieldError) string {
		switch e.ActualTag() {
		case "required":
			return "value is empty"
		case "url":
			return fmt.Sprintf("%q is not a valid URL", e.Value())
		case "gt":
			return "must be positive"
		case "numeric":
			return fmt.Sprintf("%q is not a number", e.Value())
		default:
			return fmt.Sprintf("invalid value (%s)", e.Tag())
		}
	}

	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validate config")
	}

	var b strings.Builder
	b.WriteString("invalid config values:")
	for _, fe := range verrs {
		b.WriteString(fmt.Sprintf("\n> %s: %s", fe.StructField(), translateError(fe)))
	}
	return errors.New(b.String())
}
