package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	DBDriver  string
	DBDSN     string
	JWTSecret string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load reads configuration from the environment, with a .env file layered in
// when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:      getenv("BEATLINE_ADDR", ":8080"),
		DBDriver:  getenv("BEATLINE_DB_DRIVER", "sqlite3"),
		DBDSN:     getenv("BEATLINE_DB_DSN", "beatline.db"),
		JWTSecret: os.Getenv("BEATLINE_JWT_SECRET"),

		SMTPHost:     os.Getenv("BEATLINE_SMTP_HOST"),
		SMTPPort:     getenv("BEATLINE_SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("BEATLINE_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("BEATLINE_SMTP_PASSWORD"),
		SMTPFrom:     getenv("BEATLINE_SMTP_FROM", "no-reply@beatline.app"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
