package sentinel

import (
	"fmt"
	"log/slog"
	"time"
)

// ValidateConfig performs additional validation beyond required field checks
func ValidateConfig() error {
	logLevel := ConfigSpec.GetString("log-level")
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true}
	if !validLevels[logLevel] {
		return fmt.Errorf("invalid log-level: %s (must be error|warn|info|debug)", logLevel)
	}

	if err := DetectorConfigFromSpec().Validate(); err != nil {
		return err
	}

	for _, name := range []string{
		"parser.num-workers",
		"timeout.run-seconds",
		"shutdown-timeout-seconds",
	} {
		if v := ConfigSpec.GetInt(name); v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if topN := ConfigSpec.GetInt("report.top-n"); topN < 0 {
		return fmt.Errorf("report.top-n cannot be negative, got %d", topN)
	}

	if maxRetries := ConfigSpec.GetInt("retry.max-retries"); maxRetries < 0 {
		return fmt.Errorf("retry.max-retries cannot be negative, got %d", maxRetries)
	}

	jitter := ConfigSpec.GetFloat64("retry.backoff-jitter-factor")
	if jitter < 0 || jitter > 1 {
		return fmt.Errorf("retry.backoff-jitter-factor must be between 0 and 1, got %g", jitter)
	}

	if ConfigSpec.GetBool("s3.enabled") {
		if ConfigSpec.GetString("s3.bucket") == "" {
			return fmt.Errorf("s3.bucket is required when s3.enabled is set")
		}

		maxRetryAttempts := ConfigSpec.GetInt("s3.max-retry-attempts")
		if maxRetryAttempts <= 0 {
			return fmt.Errorf("s3.max-retry-attempts must be positive, got %d", maxRetryAttempts)
		}

		maxBackoffDelay := ConfigSpec.GetInt("s3.max-backoff-delay-seconds")
		if maxBackoffDelay <= 0 {
			return fmt.Errorf("s3.max-backoff-delay-seconds must be positive, got %d", maxBackoffDelay)
		}
	}

	if ConfigSpec.GetBool("clickhouse.enabled") && len(ConfigSpec.GetStringSlice("clickhouse.url")) == 0 {
		return fmt.Errorf("clickhouse.url is required when clickhouse.enabled is set")
	}

	return nil
}

// DetectorConfigFromSpec reads the detection parameters from the running configuration
func DetectorConfigFromSpec() DetectorConfig {
	return DetectorConfig{
		Window:            time.Duration(ConfigSpec.GetInt("detector.window-seconds")) * time.Second,
		DistinctThreshold: ConfigSpec.GetInt("detector.distinct-threshold"),
		MinRequests:       ConfigSpec.GetInt("detector.min-requests"),
		NumWorkers:        ConfigSpec.GetInt("detector.num-workers"),
		StopOnDetection:   ConfigSpec.GetBool("detector.stop-on-detection"),
	}
}

// RetryPolicyFromSpec reads the sink retry policy from the running configuration
func RetryPolicyFromSpec() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          ConfigSpec.GetInt("retry.max-retries"),
		InitialBackoff:      time.Duration(ConfigSpec.GetInt("retry.initial-backoff-seconds")) * time.Second,
		MaxBackoff:          time.Duration(ConfigSpec.GetInt("retry.max-backoff-seconds")) * time.Second,
		BackoffJitterFactor: ConfigSpec.GetFloat64("retry.backoff-jitter-factor"),
	}
}

// PipelineConfigFromSpec builds the pipeline configuration from the running configuration
func PipelineConfigFromSpec(logger *slog.Logger, metrics *Metrics) Config {
	return Config{
		Logger:             logger,
		Metrics:            metrics,
		Detector:           DetectorConfigFromSpec(),
		ParserWorkers:      ConfigSpec.GetInt("parser.num-workers"),
		TopN:               ConfigSpec.GetInt("report.top-n"),
		OutputDirectory:    ConfigSpec.GetString("output.directory"),
		ArchivePath:        ConfigSpec.GetString("archive.path"),
		S3Enabled:          ConfigSpec.GetBool("s3.enabled"),
		S3Endpoint:         ConfigSpec.GetString("s3.endpoint"),
		S3AccessKeyID:      ConfigSpec.GetString("s3.access-key-id"),
		S3SecretAccessKey:  ConfigSpec.GetString("s3.secret-access-key"),
		S3Bucket:           ConfigSpec.GetString("s3.bucket"),
		S3Prefix:           ConfigSpec.GetString("s3.prefix"),
		S3MaxRetryAttempts: ConfigSpec.GetInt("s3.max-retry-attempts"),
		S3MaxBackoffDelay:  time.Duration(ConfigSpec.GetInt("s3.max-backoff-delay-seconds")) * time.Second,
		ClickHouseEnabled:  ConfigSpec.GetBool("clickhouse.enabled"),
		ClickHouseHosts:    ConfigSpec.GetStringSlice("clickhouse.url"),
		ClickHouseUsername: ConfigSpec.GetString("clickhouse.username"),
		ClickHousePassword: ConfigSpec.GetString("clickhouse.password"),
		ClickHouseTimeout:  time.Duration(ConfigSpec.GetInt("clickhouse.timeout-seconds")) * time.Second,
		Retry:              RetryPolicyFromSpec(),
	}
}
