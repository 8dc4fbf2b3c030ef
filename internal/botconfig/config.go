// Package botconfig loads and validates the bot's runtime
// configuration file, the bot-config.json the container mounts.
//
// The file shape mirrors what the bot itself reads: cooldown tuning,
// logfile placement, development server IDs and the markov training
// toggle. Discord tokens never live in the file; they are resolved
// from the environment so the config can be committed and mounted
// read-only.
package botconfig

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// DefaultPath is the config file location used when neither an
// explicit path nor $BOT_CONFIG is set.
const DefaultPath = "./bot-config.json"

// EnvConfigPath is the environment variable that overrides the config
// file location.
const EnvConfigPath = "BOT_CONFIG"

// Environment variables holding the Discord tokens.
const (
	EnvRunToken         = "BOT_RUN_TOKEN"
	EnvDevelopmentToken = "BOT_DEVELOPMENT_TOKEN"
)

// Config is the bot's runtime configuration.
type Config struct {
	// Cooldown tunes the per-user rate limiting of bot responses.
	Cooldown CooldownConfig `json:"COOLDOWN"`

	// Logfile controls where the bot writes its rotating log.
	Logfile LogfileConfig `json:"LOGFILE"`

	// Discord holds server-level Discord settings.
	Discord DiscordConfig `json:"DISCORD"`

	// Markov holds the markov training toggle.
	Markov MarkovConfig `json:"MARKOV"`
}

// CooldownConfig tunes response rate limiting.
type CooldownConfig struct {
	// Rate is the number of interactions allowed before the cooldown
	// window applies. Must be at least 1.
	Rate int `json:"RATE"`

	// Standard is the standard cooldown window in seconds.
	Standard int `json:"STANDARD"`

	// Extended is the extended cooldown window in seconds.
	Extended int `json:"EXTENDED"`

	// NoCooldownServers lists server IDs exempt from cooldowns.
	NoCooldownServers []int64 `json:"NO_COOLDOWN_SERVERS"`

	// NoCooldownUsers lists user IDs exempt from cooldowns.
	NoCooldownUsers []int64 `json:"NO_COOLDOWN_USERS"`
}

// LogfileConfig controls log placement.
type LogfileConfig struct {
	// LogName is the logger name.
	LogName string `json:"LOG_NAME"`

	// LogLocation is the logfile path inside the container.
	LogLocation string `json:"LOG_LOCATION"`
}

// DiscordConfig holds Discord server settings.
type DiscordConfig struct {
	// DevelopmentServers lists the server IDs development commands
	// register against.
	DevelopmentServers []int64 `json:"DEVELOPMENT_SERVERS"`
}

// MarkovConfig holds markov chain settings.
type MarkovConfig struct {
	// EnableTraining controls whether the bot records messages for
	// chain updates.
	EnableTraining bool `json:"ENABLE_MARKOV_TRAINING"`
}

// Tokens holds the Discord tokens resolved from the environment.
type Tokens struct {
	Run         string
	Development string
}

// Loaded pairs a parsed Config with the path it came from.
type Loaded struct {
	Config

	// Path is the resolved config file path.
	Path string
}

// ResolvePath determines the config file location. Priority order:
// explicit path argument, $BOT_CONFIG, then the default location.
// This matches the lookup order the bot itself uses.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and parses the config file at the resolved location.
// The file may contain comments and trailing commas.
func Load(explicit string) (*Loaded, error) {
	path := ResolvePath(explicit)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("bot config not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read bot config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse bot config %s", path),
			err,
		)
	}

	return &Loaded{Config: cfg, Path: path}, nil
}

// Validate checks the configuration values the bot depends on.
// Returns a CLIError with ExitConfigInvalid on the first violation.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return model.NewCLIError(model.ExitConfigInvalid, fmt.Sprintf(format, args...))
	}

	if c.Cooldown.Rate < 1 {
		return fail("bot config: COOLDOWN.RATE must be at least 1, got %d", c.Cooldown.Rate)
	}
	if c.Cooldown.Standard <= 0 {
		return fail("bot config: COOLDOWN.STANDARD must be positive, got %d", c.Cooldown.Standard)
	}
	if c.Cooldown.Extended < c.Cooldown.Standard {
		return fail("bot config: COOLDOWN.EXTENDED (%d) must not be shorter than COOLDOWN.STANDARD (%d)",
			c.Cooldown.Extended, c.Cooldown.Standard)
	}
	if c.Logfile.LogName == "" {
		return fail("bot config: LOGFILE.LOG_NAME must not be empty")
	}
	if c.Logfile.LogLocation == "" {
		return fail("bot config: LOGFILE.LOG_LOCATION must not be empty")
	}

	return nil
}

// ResolveTokens reads the Discord tokens from the environment.
func ResolveTokens() Tokens {
	return Tokens{
		Run:         os.Getenv(EnvRunToken),
		Development: os.Getenv(EnvDevelopmentToken),
	}
}

// ValidateForDeploy runs Validate and additionally requires the run
// token to be present, since a deployed bot without a token can only
// crash-loop.
func (c *Config) ValidateForDeploy(tokens Tokens) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if tokens.Run == "" {
		return model.NewCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("bot config: %s must be set in the environment to deploy", EnvRunToken),
		)
	}
	return nil
}

// Digest returns the hex BLAKE3 digest of the normalized (re-marshaled)
// configuration. Normalizing first means formatting-only edits to the
// file, comments included, do not register as drift.
func (c *Config) Digest() (string, error) {
	normalized, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to normalize bot config: %w", err)
	}
	sum := blake3.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}
