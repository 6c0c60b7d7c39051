package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Market struct {
	// ValueMin/ValueMax bound the uniform private value/cost draw.
	ValueMin int
	ValueMax int
	// RoundDuration is the advisory trading window per round. The HTTP
	// layer stops taking submissions after it passes; matching itself
	// never depends on it.
	RoundDuration time.Duration
	// Rounds is how many trading rounds the server runs.
	Rounds int
}

type Session struct {
	ID string
	// Participants joined at startup. Even join ordinals become buyers,
	// odd ordinals sellers.
	Participants int
}

type Server struct {
	APIAddr string
	DataDir string
	LogFile string
}

type Config struct {
	Market  Market
	Session Session
	Server  Server
}

func Default() Config {
	return Config{
		Market: Market{
			ValueMin:      1,
			ValueMax:      10,
			RoundDuration: 25 * time.Minute,
			Rounds:        1,
		},
		Session: Session{
			ID:           "default",
			Participants: 6,
		},
		Server: Server{
			APIAddr: ":8080",
			DataDir: "data",
			LogFile: "data/server.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Server.APIAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Server.LogFile = v
	}
	if v := os.Getenv("SESSION_ID"); v != "" {
		cfg.Session.ID = v
	}
	if v := os.Getenv("PARTICIPANTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.Participants = n
		}
	}
	if v := os.Getenv("ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Market.Rounds = n
		}
	}
	if v := os.Getenv("ROUND_DURATION_S"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.Market.RoundDuration = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("VALUE_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Market.ValueMin = n
		}
	}
	if v := os.Getenv("VALUE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Market.ValueMax = n
		}
	}

	return cfg
}
