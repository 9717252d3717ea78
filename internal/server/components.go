package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/filex"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/config"
	"github.com/berniemackie97/skillbound-sub002/internal/server/milestones"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
)

// MemoryDSN selects the process-local repositories instead of Postgres.
const MemoryDSN = "memory://"

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newS3Store = func(ctx context.Context, cfg objectstore.S3Config) (objectstore.Store, error) {
		return objectstore.NewS3(ctx, cfg)
	}
)

// Components is everything the service and the CLI build from one Config.
type Components struct {
	Config     *config.Config
	Log        logging.Logger
	Tx         dbx.Transactor
	Repos      repomanager.RepositoryManager
	Store      objectstore.Store
	Writer     *archive.Writer
	Restorer   *archive.Restorer
	Links      *archive.Links
	Milestones *milestones.Service
	Job        *retention.Job

	closers []func() error
}

// Build opens the database, runs migrations, opens the archive store and
// wires the services. Close releases whatever was opened.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (*Components, error) {
	c := &Components{Config: cfg, Log: log}

	if err := c.openDatabase(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Writer = archive.NewWriter(c.Store, c.Tx, c.Repos, archive.WriterConfig{
		Prefix:  cfg.ArchivePrefix,
		Timeout: cfg.ArchiveTimeout,
	}, log.With("component", "archive"))
	c.Restorer = archive.NewRestorer(c.Store, c.Tx, c.Repos, cfg.ArchiveTimeout, log.With("component", "restore"))
	c.Links = archive.NewLinks(c.Store, c.Tx, c.Repos, cfg.PresignExpiry)
	c.Milestones = milestones.NewService(c.Tx, c.Repos, log.With("component", "milestones"))
	c.Job = retention.NewJob(c.Tx, c.Repos, c.Writer, cfg.DeleteAfterArchive, log.With("component", "retention"))
	return c, nil
}

func (c *Components) openDatabase(ctx context.Context) error {
	if strings.HasPrefix(c.Config.DatabaseDSN, MemoryDSN) {
		c.Log.Warn(ctx, "using in-memory repositories, nothing will be persisted")
		c.Tx = dbx.NopTransactor{}
		c.Repos = repomanager.NewInMemoryRepositoryManager()
		return nil
	}

	db, err := openDB(c.Config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	c.closers = append(c.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	c.Tx = dbx.NewSQLTransactor(db)
	c.Repos = repos
	return nil
}

// openStore leaves Store nil when archival is not configured; the writer
// then reports every batch as disabled and nothing is deleted.
func (c *Components) openStore(ctx context.Context) error {
	cfg := c.Config
	if !cfg.ArchiveEnabled() {
		c.Log.Warn(ctx, "archival is not configured, snapshots will be promoted but never deleted",
			"provider", cfg.ArchiveProvider)
		return nil
	}

	switch cfg.ArchiveProvider {
	case config.ProviderS3:
		store, err := newS3Store(ctx, objectstore.S3Config{
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("s3 store: %w", err)
		}
		c.Store = store
	case config.ProviderBadger:
		dir, err := filex.EnsureDir(cfg.BadgerPath)
		if err != nil {
			return fmt.Errorf("badger store: %w", err)
		}
		store, err := objectstore.NewBadger(objectstore.BadgerConfig{Path: dir, Bucket: "archives"})
		if err != nil {
			return fmt.Errorf("badger store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		c.Store = store
	case config.ProviderMemory:
		c.Log.Warn(ctx, "archives are kept in memory and lost on restart")
		c.Store = objectstore.NewMemory("archives")
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
