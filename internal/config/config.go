package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config contains all runtime settings for the taunt bot.
type Config struct {
	DiscordToken   string
	EnableMentions bool

	TauntsPath string
	TauntMax   int
	TauntExt   string

	BotStatus   string
	BotActivity string

	VoiceFrameTimeout    time.Duration
	VoiceBreakerFailures int
	VoiceBreakerCooldown time.Duration

	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	LogLevel  string
	LogFormat string
}

// Keys double as environment variable names and as lower-cased keys in an
// optional tauntbot.yaml.
const (
	keyDiscordToken         = "DISCORD_TOKEN"
	keyEnableMentions       = "ENABLE_DISCORD_MENTIONS"
	keyTauntsPath           = "TAUNTS_PATH"
	keyTauntMax             = "TAUNT_MAX"
	keyTauntExt             = "TAUNT_EXT"
	keyBotStatus            = "BOT_STATUS"
	keyBotActivity          = "BOT_ACTIVITY"
	keyVoiceFrameTimeout    = "VOICE_FRAME_TIMEOUT"
	keyVoiceBreakerFailures = "VOICE_BREAKER_FAILURES"
	keyVoiceBreakerCooldown = "VOICE_BREAKER_COOLDOWN"
	keyBindAddr             = "APP_BIND_ADDR"
	keyShutdownTimeout      = "APP_SHUTDOWN_TIMEOUT"
	keyMetricsNamespace     = "APP_METRICS_NAMESPACE"
	keyLogLevel             = "LOG_LEVEL"
	keyLogFormat            = "LOG_FORMAT"
)

var defaults = map[string]string{
	keyEnableMentions:       "false",
	keyTauntsPath:           "./taunts",
	keyTauntMax:             "105",
	keyTauntExt:             ".ogg",
	keyBotStatus:            "dnd",
	keyBotActivity:          "Age of Empires II",
	keyVoiceFrameTimeout:    "2s",
	keyVoiceBreakerFailures: "5",
	keyVoiceBreakerCooldown: "30s",
	keyBindAddr:             ":8080",
	keyShutdownTimeout:      "15s",
	keyMetricsNamespace:     "tauntbot",
	keyLogLevel:             "info",
	keyLogFormat:            "json",
}

var validStatuses = map[string]bool{"online": true, "idle": true, "dnd": true, "invisible": true}

// Load reads .env, then tauntbot.yaml from the working directory or ./configs,
// then the process environment, which wins over both files.
func Load() (Config, error) {
	return load(".env", ".", "./configs")
}

func load(dotenvPath string, searchPaths ...string) (Config, error) {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
	}

	v := viper.New()
	v.SetConfigName("tauntbot")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		DiscordToken:     stringFrom(v, keyDiscordToken),
		TauntsPath:       stringFrom(v, keyTauntsPath),
		TauntExt:         stringFrom(v, keyTauntExt),
		BotStatus:        strings.ToLower(stringFrom(v, keyBotStatus)),
		BotActivity:      stringFrom(v, keyBotActivity),
		BindAddr:         stringFrom(v, keyBindAddr),
		MetricsNamespace: stringFrom(v, keyMetricsNamespace),
		LogLevel:         strings.ToLower(stringFrom(v, keyLogLevel)),
		LogFormat:        strings.ToLower(stringFrom(v, keyLogFormat)),
	}
	var err error
	if cfg.EnableMentions, err = boolFrom(v, keyEnableMentions); err != nil {
		return Config{}, err
	}
	if cfg.TauntMax, err = intFrom(v, keyTauntMax); err != nil {
		return Config{}, err
	}
	if cfg.VoiceBreakerFailures, err = intFrom(v, keyVoiceBreakerFailures); err != nil {
		return Config{}, err
	}
	if cfg.VoiceFrameTimeout, err = durationFrom(v, keyVoiceFrameTimeout); err != nil {
		return Config{}, err
	}
	if cfg.VoiceBreakerCooldown, err = durationFrom(v, keyVoiceBreakerCooldown); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationFrom(v, keyShutdownTimeout); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("%s is required", keyDiscordToken)
	}
	if c.TauntsPath == "" {
		return fmt.Errorf("%s must not be empty", keyTauntsPath)
	}
	if c.TauntMax <= 0 {
		return fmt.Errorf("%s must be positive", keyTauntMax)
	}
	if !validStatuses[c.BotStatus] {
		return fmt.Errorf("%s must be one of online, idle, dnd, invisible", keyBotStatus)
	}
	if c.VoiceFrameTimeout <= 0 {
		return fmt.Errorf("%s must be positive", keyVoiceFrameTimeout)
	}
	if c.VoiceBreakerFailures <= 0 {
		return fmt.Errorf("%s must be positive", keyVoiceBreakerFailures)
	}
	if c.VoiceBreakerCooldown < time.Second {
		return fmt.Errorf("%s must be at least 1s", keyVoiceBreakerCooldown)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s must be positive", keyShutdownTimeout)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%s must be json or console", keyLogFormat)
	}
	return nil
}

func stringFrom(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func durationFrom(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(stringFrom(v, key))
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFrom(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(stringFrom(v, key))
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFrom(v *viper.Viper, key string) (bool, error) {
	switch strings.ToLower(stringFrom(v, key)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
