package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// Server
	GO_ENV          string
	PORT            int
	APP_URL         string
	ALLOWED_ORIGINS string
	// Database
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Stripe Configuration
	STRIPE_SECRET_KEY         string
	STRIPE_WEBHOOK_SECRET     string
	CURRENCY                  string
	ALLOW_UNVERIFIED_WEBHOOKS bool
	// S3 Configuration
	AWS_REGION            string
	AWS_S3_BUCKET_NAME    string
	AWS_ACCESS_KEY_ID     string
	AWS_SECRET_ACCESS_KEY string
	AWS_S3_ENDPOINT       string
	// Link lifetimes
	DOWNLOAD_LINK_EXPIRY_HOURS       int
	PURCHASE_EMAIL_LINK_EXPIRY_HOURS int
	// Maintenance
	CRON_SECRET  string
	CRON_ENABLED bool
	// SMTP Configuration
	SMTP_HOST       string
	SMTP_PORT       string
	SMTP_USERNAME   string
	SMTP_PASSWORD   string
	SMTP_FROM_EMAIL string
	SMTP_FROM_NAME  string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// RabbitMQ Configuration
	RABBITMQ_URL string
}

// IsProduction reports whether GO_ENV selects the production profile.
func (e *EnviornmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := getOrDefault("DB_HOST", "localhost")
	dbPort := getOrDefault("DB_PORT", "5432")

	goEnv := os.Getenv("GO_ENV")

	// Unverified webhooks are a local development aid only
	allowUnverified := getBool("ALLOW_UNVERIFIED_WEBHOOKS", false)
	if goEnv == "production" {
		allowUnverified = false
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:          goEnv,
		PORT:            port,
		APP_URL:         strings.TrimRight(getOrDefault("APP_URL", "http://localhost:3000"), "/"),
		ALLOWED_ORIGINS: getOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		// Database
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  getOrDefault("DB_SSL_MODE", "disable"),
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getOrDefault("JWT_ISSUER", "course-storefront"),
		// Stripe
		STRIPE_SECRET_KEY:         os.Getenv("STRIPE_SECRET_KEY"),
		STRIPE_WEBHOOK_SECRET:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CURRENCY:                  strings.ToLower(getOrDefault("CURRENCY", "usd")),
		ALLOW_UNVERIFIED_WEBHOOKS: allowUnverified,
		// S3
		AWS_REGION:            getOrDefault("AWS_REGION", "us-east-1"),
		AWS_S3_BUCKET_NAME:    os.Getenv("AWS_S3_BUCKET_NAME"),
		AWS_ACCESS_KEY_ID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWS_SECRET_ACCESS_KEY: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWS_S3_ENDPOINT:       os.Getenv("AWS_S3_ENDPOINT"),
		// Link lifetimes
		DOWNLOAD_LINK_EXPIRY_HOURS:       getInt("DOWNLOAD_LINK_EXPIRY_HOURS", 24),
		PURCHASE_EMAIL_LINK_EXPIRY_HOURS: getInt("PURCHASE_EMAIL_LINK_EXPIRY_HOURS", 168),
		// Maintenance
		CRON_SECRET:  os.Getenv("CRON_SECRET"),
		CRON_ENABLED: getBool("CRON_ENABLED", true),
		// SMTP
		SMTP_HOST:       os.Getenv("SMTP_HOST"),
		SMTP_PORT:       getOrDefault("SMTP_PORT", "587"),
		SMTP_USERNAME:   os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD:   os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM_EMAIL: os.Getenv("SMTP_FROM_EMAIL"),
		SMTP_FROM_NAME:  getOrDefault("SMTP_FROM_NAME", "Course Store"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// RabbitMQ
		RABBITMQ_URL: os.Getenv("RABBITMQ_URL"),
	}

	return envVariables, nil
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
