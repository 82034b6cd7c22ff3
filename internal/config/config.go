package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath      string
	JWTPublicKeyPath       string
	JWTExpiry              time.Duration
	RefreshTokenExpiryDays int

	MailTransport string // "smtp" | "ses"
	MailFrom      string
	MailFromName  string
	CareersInbox  string
	CareersFrom   string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SESRegion     string

	SNSRegion         string
	CareersTopicARN   string // empty disables career notifications
	RedisURL          string // empty keeps rate-limit windows in DynamoDB
	RedisPassword     string
	AllowedOrigins    []string
	CampusConfigPath  string
	AdminEmails       []string // overrides the campus config allowlist when set
	EncryptionKey     string
	EncryptionKeyPrev string
	PBKDF2Iterations  int
	AdminAPIKey       string

	OTP OTPSettings
}

// OTPSettings tunes issuance and verification limits.
type OTPSettings struct {
	TTL          time.Duration
	MaxAttempts  int
	RateMax      int
	RateWindow   time.Duration
	BcryptCost   int
	MinRetryHint time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Campuses           string
	OTPCodes           string
	OTPRateLimits      string
	Users              string
	Profiles           string
	Sessions           string
	Responses          string
	Waitlist           string
	CareerApplications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Campuses:           getEnv("DYNAMO_TABLE_CAMPUSES", "campuses"),
			OTPCodes:           getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			OTPRateLimits:      getEnv("DYNAMO_TABLE_OTP_RATE_LIMITS", "otp_rate_limits"),
			Users:              getEnv("DYNAMO_TABLE_USERS", "users"),
			Profiles:           getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			Sessions:           getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Responses:          getEnv("DYNAMO_TABLE_RESPONSES", "responses"),
			Waitlist:           getEnv("DYNAMO_TABLE_WAITLIST", "waitlist"),
			CareerApplications: getEnv("DYNAMO_TABLE_CAREER_APPLICATIONS", "career_applications"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "justone-private"),

		JWTPrivateKeyPath:      getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:       getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:              getEnvDuration("JWT_EXPIRY", time.Hour),
		RefreshTokenExpiryDays: getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),

		MailTransport: getEnv("MAIL_TRANSPORT", "smtp"),
		MailFrom:      getEnv("MAIL_FROM", "no-reply@justonematch.in"),
		MailFromName:  getEnv("MAIL_FROM_NAME", "JustOne"),
		CareersInbox:  getEnv("CAREERS_INBOX", "support@justonematch.in"),
		CareersFrom:   getEnv("CAREERS_FROM", "careers@justonematch.in"),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnvInt("SMTP_PORT", 1025),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SESRegion:     getEnv("SES_REGION", ""),

		SNSRegion:         getEnv("SNS_REGION", "ap-south-1"),
		CareersTopicARN:   getEnv("SNS_CAREERS_TOPIC_ARN", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		CampusConfigPath:  getEnv("CAMPUS_CONFIG_PATH", "./campuses.yaml"),
		AdminEmails:       splitList(getEnv("ADMIN_EMAILS", "")),
		EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
		EncryptionKeyPrev: getEnv("ENCRYPTION_KEY_PREVIOUS", ""),
		PBKDF2Iterations:  getEnvInt("PBKDF2_ITERATIONS", 100000),
		AdminAPIKey:       getEnv("ADMIN_API_KEY", ""),

		OTP: OTPSettings{
			TTL:          getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:  getEnvInt("OTP_MAX_ATTEMPTS", 5),
			RateMax:      getEnvInt("OTP_RATE_MAX", 3),
			RateWindow:   getEnvDuration("OTP_RATE_WINDOW", 10*time.Minute),
			BcryptCost:   getEnvInt("OTP_BCRYPT_COST", 10),
			MinRetryHint: getEnvDuration("OTP_MIN_RETRY_HINT", time.Minute),
		},
	}
}

// RefreshTokenExpiry returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTokenExpiry() time.Duration {
	return time.Duration(c.RefreshTokenExpiryDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// splitList splits a comma separated value, trimming blanks and dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
