package config

import (
	"flag"
	"os"
	"time"

	"github.com/dkurganov/voicediary/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t string   transcription API base URL
//	-k string   transcription API key
//	-n string   analysis API URL (empty for the provider default)
//	-y string   analysis API key
//	-m string   analysis model name
//	-i int      scheduler tick interval, seconds
//	-o int      provider HTTP timeout, seconds
//	-l string   language hint for transcription
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in seconds and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-u", "-p", "-b", "-g", "-e", "-t", "-k", "-n", "-y", "-m", "-i", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.TranscriptionAPIURL, "t", config.TranscriptionAPIURL, "transcription API base URL")
	fs.StringVar(&config.TranscriptionAPIKey, "k", config.TranscriptionAPIKey, "transcription API key")
	fs.StringVar(&config.AnalysisAPIURL, "n", config.AnalysisAPIURL, "analysis API URL")
	fs.StringVar(&config.AnalysisAPIKey, "y", config.AnalysisAPIKey, "analysis API key")
	fs.StringVar(&config.AnalysisModel, "m", config.AnalysisModel, "analysis model name")
	fs.StringVar(&config.LanguageHint, "l", config.LanguageHint, "language hint")

	tickInterval := fs.Int("i", int(config.TickInterval.Seconds()), "tick interval (in seconds)")
	providerTimeout := fs.Int("o", int(config.ProviderTimeout.Seconds()), "provider timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TickInterval = time.Duration(*tickInterval) * time.Second
	config.ProviderTimeout = time.Duration(*providerTimeout) * time.Second
}
