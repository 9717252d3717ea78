package config

import (
	"flag"
	"io"

	"github.com/berniemackie97/skillbound-sub002/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags (short forms):
//
//	-a string    HTTP bind address (e.g., ":8080")
//	-r string    gRPC bind address (empty disables it)
//	-t string    operator token for gRPC callers
//	-d string    PostgreSQL DSN or memory://
//	-p string    archive provider: s3, badger, memory, none
//	-b string    S3 bucket
//	-g string    S3 region
//	-e string    S3 base endpoint
//	-u string    S3 access key
//	-s string    S3 secret key
//	-k string    archive key prefix
//	-n int       job batch size
//	-i duration  job interval (0 disables the scheduler)
//	-l string    log level
//	-keep        keep rows after archiving them
//
// Only recognised flags are picked out of args, so -c and flags that belong
// to other components do not make parsing fail.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-r", "-t", "-d", "-p", "-b", "-g", "-e", "-u", "-s", "-k", "-n", "-i", "-l", "-keep"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.GRPCAddr, "r", config.GRPCAddr, "address and port of the gRPC service")
	fs.StringVar(&config.OperatorToken, "t", config.OperatorToken, "operator token")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.ArchiveProvider, "p", config.ArchiveProvider, "archive provider")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.ArchivePrefix, "k", config.ArchivePrefix, "archive key prefix")
	fs.IntVar(&config.BatchSize, "n", config.BatchSize, "job batch size")
	fs.DurationVar(&config.JobInterval, "i", config.JobInterval, "job interval")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	keep := fs.Bool("keep", false, "keep rows after archiving them")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keep {
		config.DeleteAfterArchive = false
	}
	return nil
}
