package scraper

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"smdl/internal/downloader"
	"smdl/pkg/config"
	"smdl/pkg/logger"
	"smdl/pkg/ratelimit"
	"smdl/pkg/retry"
	"smdl/pkg/smugmug"
	"smdl/pkg/storage"
	"smdl/pkg/ui"
)

// Session authenticates and streams download bodies
type Session interface {
	Authenticate(ctx context.Context, username string, creds smugmug.Credentials) error
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// MediaSource enumerates an account and resolves download URLs
type MediaSource interface {
	ListAlbums(ctx context.Context, username string, sel smugmug.Selector) ([]smugmug.Album, error)
	ListMedia(ctx context.Context, album smugmug.Album) ([]smugmug.MediaEntry, error)
	Resolve(ctx context.Context, entry smugmug.MediaEntry) (string, error)
}

// AlbumStore is the local mirror
type AlbumStore interface {
	downloader.Store
	PrepareAlbum(urlPath string) (string, error)
}

// Options selects what a run mirrors
type Options struct {
	Username    string
	Credentials smugmug.Credentials
	Selector    smugmug.Selector
}

// Failure is one item, or a whole album when File is empty, that could
// not be mirrored
type Failure struct {
	Album string
	File  string
	Err   error
}

// Summary reports the outcome of a run
type Summary struct {
	RunID    string
	Username string
	Counts   ui.Counts
	Failures []Failure
	Duration time.Duration
	// Stopped is set when the run was cancelled before every album finished
	Stopped bool
}

// Scraper orchestrates a mirror run
type Scraper struct {
	session  Session
	source   MediaSource
	store    AlbumStore
	poolCfg  downloader.PoolConfig
	observer ui.Observer
	logger   logger.Logger
}

// New wires a Scraper from its collaborators
func New(session Session, source MediaSource, store AlbumStore, poolCfg downloader.PoolConfig, log logger.Logger) *Scraper {
	return &Scraper{
		session:  session,
		source:   source,
		store:    store,
		poolCfg:  poolCfg,
		observer: ui.NopObserver{},
		logger:   logger.OrDefault(log).WithField("component", "scraper"),
	}
}

// NewFromConfig builds the session, fetcher, client, storage and pool
// settings described by cfg.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Scraper, error) {
	log = logger.OrDefault(log)

	session, err := smugmug.NewSession(smugmug.SessionConfig{
		Endpoints: smugmug.Endpoints{
			APIBaseURL: cfg.SmugMug.APIBaseURL,
			AccountURL: cfg.SmugMug.AccountURL,
		},
		UserAgent: cfg.SmugMug.UserAgent,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	policy := retry.NewPolicy(cfg.Retry, log)
	fetcher := smugmug.NewFetcher(session, smugmug.FetcherConfig{
		Policy:         policy,
		Limiter:        ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		RequestTimeout: cfg.SmugMug.RequestTimeout,
	}, log)
	client := smugmug.NewClient(fetcher, cfg.SmugMug.MaxPages, log)

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Download.BufferSize, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	poolCfg := downloader.PoolConfig{
		Workers: cfg.Download.ConcurrentDownloads,
		Policy:  policy.WithMaxAttempts(cfg.Download.RetryAttempts),
		Timeout: cfg.Download.DownloadTimeout,
	}

	logger.LogComponentStart(log, "scraper", map[string]interface{}{
		"output_dir":    store.BaseDir(),
		"workers":       poolCfg.Workers,
		"rate_per_min":  cfg.RateLimit.RequestsPerMinute,
		"max_attempts":  cfg.Retry.MaxAttempts,
		"file_attempts": cfg.Download.RetryAttempts,
	})
	return New(session, client, store, poolCfg, log), nil
}

// SetObserver sets where progress events go; nil discards them
func (s *Scraper) SetObserver(o ui.Observer) {
	if o == nil {
		o = ui.NopObserver{}
	}
	s.observer = o
}

// Run mirrors the selected albums of opts.Username. The returned error is
// non-nil only when the account itself could not be enumerated; item and
// album failures are reported in the Summary.
func (s *Scraper) Run(ctx context.Context, opts Options) (summary *Summary, err error) {
	start := time.Now()
	summary = &Summary{RunID: uuid.NewString(), Username: opts.Username}
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":   summary.RunID,
		"username": opts.Username,
	})

	defer func() {
		summary.Duration = time.Since(start)
		s.observer.RunFinished(summary.Counts, summary.Duration, err)
	}()

	log.InfoWithFields("Starting mirror", map[string]interface{}{
		"auth":     opts.Credentials.Mode(),
		"selector": opts.Selector.String(),
	})

	// Authentication failures degrade to public access
	if authErr := s.session.Authenticate(ctx, opts.Username, opts.Credentials); authErr != nil {
		log.WithError(authErr).Warn("Authentication failed, continuing with public access")
		s.observer.Message(ui.LevelWarn, "Authentication failed, continuing with public access: %v", authErr)
	}

	albums, err := s.source.ListAlbums(ctx, opts.Username, opts.Selector)
	if err != nil {
		log.WithError(err).Error("Could not list albums")
		return summary, err
	}
	if len(albums) == 0 {
		log.Warn("No albums matched the selection")
		s.observer.Message(ui.LevelWarn, "No albums matched %s", opts.Selector.String())
		return summary, nil
	}

	s.observer.RunStarted(opts.Username, len(albums))
	log.InfoWithFields("Albums selected", map[string]interface{}{"albums": len(albums)})

	for i, album := range albums {
		if ctx.Err() != nil {
			summary.Stopped = true
			break
		}
		counts, failures := s.mirrorAlbum(ctx, log, album, i+1, len(albums))
		summary.Counts.Add(counts)
		summary.Failures = append(summary.Failures, failures...)
	}
	if ctx.Err() != nil {
		summary.Stopped = true
	}

	log.InfoWithFields("Mirror finished", map[string]interface{}{
		"albums":     summary.Counts.Albums,
		"downloaded": summary.Counts.Downloaded,
		"skipped":    summary.Counts.Skipped,
		"failed":     summary.Counts.Failed,
		"bytes":      summary.Counts.Bytes,
		"stopped":    summary.Stopped,
	})
	return summary, nil
}

// mirrorAlbum downloads every missing entry of one album. Errors never
// escape; they come back as failures.
func (s *Scraper) mirrorAlbum(ctx context.Context, log logger.Logger, album smugmug.Album, index, total int) (ui.Counts, []Failure) {
	counts := ui.Counts{Albums: 1}
	log = log.WithFields(map[string]interface{}{
		"album":    album.Name,
		"url_path": album.URLPath,
	})

	albumFailed := func(err error, msg string) (ui.Counts, []Failure) {
		log.WithError(err).Error(msg)
		s.observer.Message(ui.LevelError, "%s: %s: %v", album.Name, msg, err)
		s.observer.AlbumFinished(album.Name, counts)
		return counts, []Failure{{Album: album.Name, Err: err}}
	}

	dir, err := s.store.PrepareAlbum(album.URLPath)
	if err != nil {
		return albumFailed(err, "Could not prepare album directory")
	}

	entries, err := s.source.ListMedia(ctx, album)
	if err != nil {
		return albumFailed(err, "Could not list album media")
	}

	s.observer.AlbumStarted(album.Name, index, total, len(entries))
	log.InfoWithFields("Mirroring album", map[string]interface{}{
		"index":   index,
		"total":   total,
		"entries": len(entries),
	})

	pool := downloader.NewWorkerPool(s.poolCfg, s.source, s.session, s.store, log)
	pool.Start(ctx)

	var failures []Failure
	var g errgroup.Group
	g.Go(func() error {
		for r := range pool.Results() {
			status := r.Status.String()
			counts.Record(status, r.Bytes)
			s.observer.ItemFinished(album.Name, r.Job.Entry.FileName, status, r.Bytes, r.Err)
			if r.Status == downloader.StatusFailed {
				failures = append(failures, Failure{Album: album.Name, File: r.Job.Entry.FileName, Err: r.Err})
			}
		}
		return nil
	})

	for _, entry := range entries {
		if err := pool.Submit(downloader.Job{Album: album, Entry: entry, Dir: dir}); err != nil {
			log.WithError(err).Debug("Stopped queueing album entries")
			break
		}
	}
	pool.Close()
	_ = g.Wait()

	logger.LogAlbumProgress(log, album.Name, counts.Items(), len(entries))
	s.observer.AlbumFinished(album.Name, counts)
	return counts, failures
}
