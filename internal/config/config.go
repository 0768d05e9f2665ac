package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every process-wide setting. It is loaded once in main and
// passed into each component's constructor; nothing reads the environment
// after startup.
type Config struct {
	Env  string // development | production
	Port string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	BaseURL   string
	StaticURL string
	StaticDir string
	UploadDir string

	SenderEmail     string
	SenderName      string
	BusinessName    string
	BusinessAddress string

	MailjetPublicKey  string
	MailjetPrivateKey string

	SMSAccountSID string
	SMSAuthToken  string
	SMSFromNumber string
	SMSAPIBaseURL string

	// Base64-encoded 32-byte master key. May be empty in development, in
	// which case main generates an ephemeral one.
	EncryptionKey string

	// inline | external. Defaults by environment: inline for development,
	// external for production.
	ImageMode string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}

	env := getEnv("APP_ENV", "development")
	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")

	defaultMode := "inline"
	if env == "production" {
		defaultMode = "external"
	}

	return Config{
		Env:  env,
		Port: getEnv("PORT", "8080"),

		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASSWORD", ""),
		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "mailvine"),

		BaseURL:   baseURL,
		StaticURL: getEnv("STATIC_URL", baseURL+"/static"),
		StaticDir: getEnv("STATIC_DIR", "static"),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		SenderEmail:     getEnv("SENDER_EMAIL", ""),
		SenderName:      getEnv("SENDER_NAME", "Your Business"),
		BusinessName:    getEnv("BUSINESS_NAME", getEnv("SENDER_NAME", "Your Business")),
		BusinessAddress: getEnv("BUSINESS_ADDRESS", ""),

		MailjetPublicKey:  getEnv("MAILJET_PUBLIC_KEY", ""),
		MailjetPrivateKey: getEnv("MAILJET_PRIVATE_KEY", ""),

		SMSAccountSID: getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
		SMSFromNumber: getEnv("SMS_FROM_NUMBER", ""),
		SMSAPIBaseURL: getEnv("SMS_API_BASE_URL", "https://api.twilio.com"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		ImageMode:     getEnv("IMAGE_MODE", defaultMode),
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// FullURL prepends the base URL to a site-relative path. Absolute URLs are
// returned unchanged.
func (c Config) FullURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// StaticFileURL returns the externally reachable URL of a file under the
// static root.
func (c Config) StaticFileURL(filename string) string {
	return c.StaticURL + "/" + strings.TrimPrefix(filename, "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
