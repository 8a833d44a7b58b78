package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	// Database
	DBDriver   string // "sqlite" or "postgres"
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Webhook verification handshake
	VerifyToken string

	// Message lifecycle timing. Delivered/read offsets are measured from the
	// creation instant of the outbound message, not from each other.
	DeliveredAfter time.Duration
	ReadAfter      time.Duration
	AckTimeout     time.Duration

	// Staleness windows for the read cache
	ContactsTTL  time.Duration
	ChatsTTL     time.Duration
	CampaignsTTL time.Duration
	TemplatesTTL time.Duration
	DashboardTTL time.Duration
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./console.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "whatsapp_console"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		VerifyToken: getEnv("VERIFY_TOKEN", ""),

		DeliveredAfter: getDuration("DELIVERED_AFTER", 1*time.Second),
		ReadAfter:      getDuration("READ_AFTER", 2*time.Second),
		AckTimeout:     getDuration("ACK_TIMEOUT", 30*time.Second),

		ContactsTTL:  getDuration("CONTACTS_TTL", 30*time.Second),
		ChatsTTL:     getDuration("CHATS_TTL", 10*time.Second),
		CampaignsTTL: getDuration("CAMPAIGNS_TTL", 30*time.Second),
		TemplatesTTL: getDuration("TEMPLATES_TTL", 60*time.Second),
		DashboardTTL: getDuration("DASHBOARD_TTL", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	log.Printf("Warning: invalid duration for %s, using default", key)
	return fallback
}
