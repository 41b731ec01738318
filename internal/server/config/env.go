package config

import (
	"os"
	"time"
)

// parseEnv overlays Config fields from environment variables. Variables that
// are unset or empty leave the current value in place, so a .env file loaded
// via godotenv can override just the secrets.
func parseEnv(config *Config) {
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.S3RootUser, "S3_ROOT_USER")
	setString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.TranscriptionAPIURL, "TRANSCRIPTION_API_URL")
	setString(&config.TranscriptionAPIKey, "TRANSCRIPTION_API_KEY")
	setString(&config.AnalysisAPIURL, "ANALYSIS_API_URL")
	setString(&config.AnalysisAPIKey, "ANALYSIS_API_KEY")
	setString(&config.AnalysisModel, "ANALYSIS_MODEL")
	setString(&config.LanguageHint, "LANGUAGE_HINT")
	setDuration(&config.TickInterval, "TICK_INTERVAL")
	setDuration(&config.ProviderTimeout, "PROVIDER_TIMEOUT")
	setDuration(&config.AudioURLTTL, "AUDIO_URL_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
