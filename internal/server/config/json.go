package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dkurganov/voicediary/internal/flagx"
	"github.com/dkurganov/voicediary/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN         string         `json:"database_dsn"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	TranscriptionAPIURL string         `json:"transcription_api_url"`
	TranscriptionAPIKey string         `json:"transcription_api_key"`
	AnalysisAPIURL      string         `json:"analysis_api_url"`
	AnalysisAPIKey      string         `json:"analysis_api_key"`
	AnalysisModel       string         `json:"analysis_model"`
	TickInterval        timex.Duration `json:"tick_interval"`
	ProviderTimeout     timex.Duration `json:"provider_timeout"`
	AudioURLTTL         timex.Duration `json:"audio_url_ttl"`
	LanguageHint        string         `json:"language_hint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults, environment
// variables and command-line flags as part of the full configuration
// process.
func parseJson(config *Config) {
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

	config.DatabaseDSN = c.DatabaseDSN
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.TranscriptionAPIURL = c.TranscriptionAPIURL
	config.TranscriptionAPIKey = c.TranscriptionAPIKey
	config.AnalysisAPIURL = c.AnalysisAPIURL
	config.AnalysisAPIKey = c.AnalysisAPIKey
	config.AnalysisModel = c.AnalysisModel
	config.TickInterval = time.Duration(c.TickInterval.Duration)
	config.ProviderTimeout = time.Duration(c.ProviderTimeout.Duration)
	config.AudioURLTTL = time.Duration(c.AudioURLTTL.Duration)
	config.LanguageHint = c.LanguageHint
}
