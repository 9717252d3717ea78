package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	err := parseEnv(cfg, map[string]string{
		"SKILLBOUND_DATABASE_DSN":         "memory://",
		"SKILLBOUND_ARCHIVE_PROVIDER":     "none",
		"SKILLBOUND_DELETE_AFTER_ARCHIVE": "false",
		"SKILLBOUND_JOB_INTERVAL":         "5m",
		"SKILLBOUND_BATCH_SIZE":           "10",
		"BATCH_SIZE":                      "99",
	})
	require.NoError(t, err)

	want := &Config{}
	want.LoadDefaults()
	want.DatabaseDSN = "memory://"
	want.ArchiveProvider = ProviderNone
	want.DeleteAfterArchive = false
	want.JobInterval = 5 * time.Minute
	want.BatchSize = 10

	assert.Empty(t, cmp.Diff(want, cfg))
}

func Test_parseEnv_BadValue(t *testing.T) {
	err := parseEnv(&Config{}, map[string]string{"SKILLBOUND_BATCH_SIZE": "lots"})
	assert.ErrorContains(t, err, "parse env")
}
