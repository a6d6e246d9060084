package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/securenotes/internal/flagx"
	"github.com/dmitrijs2005/securenotes/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "10m" and integer nanoseconds.
//
// Only keys present in the file override the current Config; absent keys
// keep whatever defaults and the environment produced.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`

	SignedURLTTL    timex.Duration `json:"signed_url_ttl"`
	SignConcurrency int            `json:"sign_concurrency"`
	FetchRetries    *int           `json:"fetch_retries"`
	FetchRetryBase  timex.Duration `json:"fetch_retry_base"`
	SignupStatus    string         `json:"signup_status"`

	RedisURL     string `json:"redis_url"`
	LogFile      string `json:"log_file"`
	OTELEndpoint string `json:"otel_endpoint"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	OAuthGoogleClientID     string `json:"oauth_google_client_id"`
	OAuthGoogleClientSecret string `json:"oauth_google_client_secret"`
	OAuthGitHubClientID     string `json:"oauth_github_client_id"`
	OAuthGitHubClientSecret string `json:"oauth_github_client_secret"`
	OAuthRedirectBase       string `json:"oauth_redirect_base"`

	AppBaseURL string `json:"app_base_url"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags. If it is
// not set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.IsSet() {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.IsSet() {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.SignedURLTTL.IsSet() {
		config.SignedURLTTL = c.SignedURLTTL.Duration
	}
	setInt(&config.SignConcurrency, c.SignConcurrency)
	if c.FetchRetries != nil {
		config.FetchRetries = *c.FetchRetries
	}
	if c.FetchRetryBase.IsSet() {
		config.FetchRetryBase = c.FetchRetryBase.Duration
	}
	setString(&config.SignupStatus, c.SignupStatus)

	setString(&config.RedisURL, c.RedisURL)
	setString(&config.LogFile, c.LogFile)
	setString(&config.OTELEndpoint, c.OTELEndpoint)

	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)

	setString(&config.GoogleClientID, c.OAuthGoogleClientID)
	setString(&config.GoogleClientSecret, c.OAuthGoogleClientSecret)
	setString(&config.GitHubClientID, c.OAuthGitHubClientID)
	setString(&config.GitHubClientSecret, c.OAuthGitHubClientSecret)
	setString(&config.OAuthRedirectBase, c.OAuthRedirectBase)

	setString(&config.AppBaseURL, c.AppBaseURL)
}
