// Package config resolves runtime settings from flags, the environment and
// an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/knjiznica/internal/notify"
)

// Config holds the server settings.
type Config struct {
	DBPath     string
	Addr       string
	AdminEmail string
	LogPath    string
	Debug      bool

	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	NotifyTimeout time.Duration
}

// Defaults.
const (
	DefaultDBPath     = "knjiznica.sqlite3"
	DefaultAddr       = ":8080"
	DefaultAdminEmail = "admin@knjiznica.local"
)

const usage = `Usage: knjiznica [flags]

Flags:
  -d, -db <path>          SQLite database path (default: knjiznica.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <email>       admin email on first run (default: admin@knjiznica.local)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -e, -env <path>         .env file to load (default: .env, ignored if missing)
  -debug                  enable debug logging
  -h, -help               show this help and exit

Environment:
  KNJIZNICA_DB, KNJIZNICA_ADDR, KNJIZNICA_ADMIN_EMAIL, KNJIZNICA_LOG
  TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, TELEGRAM_API_URL
  KNJIZNICA_REDIS_ADDR, KNJIZNICA_REDIS_PASSWORD, KNJIZNICA_REDIS_CHANNEL
  KNJIZNICA_NOTIFY_TIMEOUT (e.g. 10s)
`

// ErrHelp is returned by Load when -h or -help was given.
var ErrHelp = flag.ErrHelp

// Load parses args (without the program name). Flags win over environment
// variables, which win over the .env file, which wins over defaults.
func Load(args []string, out io.Writer) (Config, error) {
	envFile := findEnvFile(args)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	timeout, err := envDuration("KNJIZNICA_NOTIFY_TIMEOUT", notify.DefaultTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramAPIURL: envOr("TELEGRAM_API_URL", notify.DefaultTelegramURL),
		RedisAddr:      os.Getenv("KNJIZNICA_REDIS_ADDR"),
		RedisPassword:  os.Getenv("KNJIZNICA_REDIS_PASSWORD"),
		RedisChannel:   envOr("KNJIZNICA_REDIS_CHANNEL", notify.DefaultRedisChannel),
		NotifyTimeout:  timeout,
	}

	fs := flag.NewFlagSet("knjiznica", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	dbDefault := envOr("KNJIZNICA_DB", DefaultDBPath)
	fs.StringVar(&cfg.DBPath, "db", dbDefault, "")
	fs.StringVar(&cfg.DBPath, "d", dbDefault, "")

	addrDefault := envOr("KNJIZNICA_ADDR", DefaultAddr)
	fs.StringVar(&cfg.Addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.Addr, "a", addrDefault, "")

	adminDefault := envOr("KNJIZNICA_ADMIN_EMAIL", DefaultAdminEmail)
	fs.StringVar(&cfg.AdminEmail, "user", adminDefault, "")
	fs.StringVar(&cfg.AdminEmail, "u", adminDefault, "")

	logDefault := os.Getenv("KNJIZNICA_LOG")
	fs.StringVar(&cfg.LogPath, "log", logDefault, "")
	fs.StringVar(&cfg.LogPath, "l", logDefault, "")

	// Already consumed by findEnvFile; registered so Parse accepts it.
	var ignored string
	fs.StringVar(&ignored, "env", "", "")
	fs.StringVar(&ignored, "e", "", "")

	fs.BoolVar(&cfg.Debug, "debug", false, "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("notify timeout must be positive")
	}
	return nil
}

// TelegramEnabled reports whether Telegram delivery is configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// findEnvFile picks the .env path from -e/-env before the full parse, since
// the file feeds the flag defaults.
func findEnvFile(args []string) string {
	for i, a := range args {
		for _, name := range []string{"-e", "-env", "--e", "--env"} {
			if a == name && i+1 < len(args) {
				return args[i+1]
			}
			if len(a) > len(name)+1 && a[:len(name)+1] == name+"=" {
				return a[len(name)+1:]
			}
		}
	}
	return ".env"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
