package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/securenotes/internal/flagx"
)

// loadDotEnv seeds the process environment from the file named by -env, or
// from ./.env when present. Variables already set in the environment win.
func loadDotEnv() {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

// parseEnv overlays Config with values taken from environment variables.
// Unset or empty variables leave the current value untouched; malformed
// numbers and durations panic, like the other layers.
func parseEnv(config *Config) {
	loadDotEnv()

	envString("HTTP_ADDR", &config.HTTPAddr)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	envDuration("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)

	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	envDuration("SIGNED_URL_TTL", &config.SignedURLTTL)
	envInt("SIGN_CONCURRENCY", &config.SignConcurrency)
	envInt("FETCH_RETRIES", &config.FetchRetries)
	envDuration("FETCH_RETRY_BASE", &config.FetchRetryBase)
	envString("SIGNUP_STATUS", &config.SignupStatus)

	envString("REDIS_URL", &config.RedisURL)
	envString("LOG_FILE", &config.LogFile)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &config.OTELEndpoint)

	envString("SMTP_HOST", &config.SMTPHost)
	envInt("SMTP_PORT", &config.SMTPPort)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)
	envString("SMTP_FROM", &config.SMTPFrom)

	envString("GOOGLE_CLIENT_ID", &config.GoogleClientID)
	envString("GOOGLE_CLIENT_SECRET", &config.GoogleClientSecret)
	envString("GITHUB_CLIENT_ID", &config.GitHubClientID)
	envString("GITHUB_CLIENT_SECRET", &config.GitHubClientSecret)
	envString("OAUTH_REDIRECT_BASE", &config.OAuthRedirectBase)

	envString("APP_BASE_URL", &config.AppBaseURL)
}
