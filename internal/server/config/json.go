package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/berniemackie97/skillbound-sub002/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "90s" strings and integer nanoseconds. Pointer fields distinguish an absent
// key from a zero value so the file only overrides what it names.
type JsonConfig struct {
	HTTPAddr           *string         `json:"http_addr"`
	GRPCAddr           *string         `json:"grpc_addr"`
	OperatorToken      *string         `json:"operator_token"`
	DatabaseDSN        *string         `json:"database_dsn"`
	ArchiveProvider    *string         `json:"archive_provider"`
	ArchivePrefix      *string         `json:"archive_prefix"`
	S3AccessKey        *string         `json:"s3_access_key"`
	S3SecretKey        *string         `json:"s3_secret_key"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL    *string         `json:"s3_public_base_url"`
	BadgerPath         *string         `json:"badger_path"`
	DeleteAfterArchive *bool           `json:"delete_after_archive"`
	BatchSize          *int            `json:"batch_size"`
	JobInterval        *timex.Duration `json:"job_interval"`
	ArchiveTimeout     *timex.Duration `json:"archive_timeout"`
	PresignExpiry      *timex.Duration `json:"presign_expiry"`
	LogLevel           *string         `json:"log_level"`
}

// parseJSON overlays the file at path onto config. An empty path is a no-op.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.GRPCAddr, c.GRPCAddr)
	set(&config.OperatorToken, c.OperatorToken)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.ArchiveProvider, c.ArchiveProvider)
	set(&config.ArchivePrefix, c.ArchivePrefix)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	set(&config.BadgerPath, c.BadgerPath)
	set(&config.DeleteAfterArchive, c.DeleteAfterArchive)
	set(&config.BatchSize, c.BatchSize)
	set(&config.LogLevel, c.LogLevel)

	if c.JobInterval != nil {
		config.JobInterval = c.JobInterval.Duration
	}
	if c.ArchiveTimeout != nil {
		config.ArchiveTimeout = c.ArchiveTimeout.Duration
	}
	if c.PresignExpiry != nil {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
