package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/assets"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/catalog"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/config"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/emergency"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/loader"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/output"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository/postgres"
	redisrepo "github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository/redis"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository/sqlite"
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	formatter *output.Formatter
	resolver  *assets.Resolver

	controller *catalog.Controller
	closers    []func()
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfigFromRootFlags(cmd)
	if err != nil {
		return nil, err
	}
	formatter, err := newFormatterFromRootFlags()
	if err != nil {
		return nil, err
	}

	// One-shot commands keep stderr quiet; the server logs its lifecycle.
	level := slog.LevelWarn
	if cmd.Name() == "serve" {
		level = slog.LevelInfo
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := logging.NewLoggerTo(cmd.ErrOrStderr(), level)
	logger.Debug("configuration loaded", "config", cfg)

	resolver, err := assets.NewResolver(assets.Options{
		BaseURL:       cfg.AssetsURL,
		ProbeTimeout:  cfg.ProbeTimeout,
		ProbeCacheTTL: cfg.ProbeCacheTTL,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, formatter: formatter, resolver: resolver}, nil
}

// openCatalog builds the loader, the emergency store and the controller.
// It does not start a load.
func (a *app) openCatalog(ctx context.Context) error {
	source, err := loader.NewSource(a.cfg.CollectionURL, nil)
	if err != nil {
		return err
	}
	l, err := loader.New(loader.Options{Source: source, Timeout: a.cfg.FetchTimeout, Logger: a.logger})
	if err != nil {
		return err
	}

	opts := catalog.Options{
		Loader: l,
		Config: catalog.Config{
			MaxRetries:    a.cfg.MaxRetries,
			BaseDelay:     a.cfg.RetryBaseDelay,
			Exponential:   a.cfg.ExponentialBackoff,
			CacheDuration: a.cfg.CacheDuration,
		},
		OnCollectionChange: func([]models.DatasetRecord) { a.resolver.Reset() },
		Logger:             a.logger,
	}
	if store := a.openEmergency(ctx); store != nil {
		opts.Emergency = store
	}

	controller, err := catalog.NewController(opts)
	if err != nil {
		return err
	}
	a.controller = controller
	a.closers = append(a.closers, controller.Close)
	return nil
}

// openEmergency returns nil when the backend is disabled or unreachable. The
// catalog works without it.
func (a *app) openEmergency(ctx context.Context) *emergency.Store {
	var (
		repo    repository.BlobRepository
		closeFn func() error
		err     error
	)
	switch a.cfg.EmergencyBackend {
	case config.BackendSQLite:
		var r *sqlite.BlobRepo
		r, err = sqlite.Open(ctx, a.cfg.EmergencyURL)
		if err == nil {
			repo, closeFn = r, r.Close
		}
	case config.BackendPostgres:
		var r *postgres.BlobRepo
		r, err = postgres.Open(ctx, a.cfg.EmergencyURL)
		if err == nil {
			repo, closeFn = r, r.Close
		}
	case config.BackendRedis:
		var r *redisrepo.BlobRepo
		r, err = redisrepo.Open(ctx, a.cfg.EmergencyURL, redisrepo.Options{})
		if err == nil {
			repo, closeFn = r, r.Close
		}
	default:
		return nil
	}
	if err != nil {
		a.logger.Warn("emergency cache unavailable",
			"backend", a.cfg.EmergencyBackend,
			"url", logging.RedactURL(a.cfg.EmergencyURL),
			"error", err.Error(),
		)
		return nil
	}

	a.closers = append(a.closers, func() {
		if err := closeFn(); err != nil {
			a.logger.Warn("close emergency cache failed", "error", err.Error())
		}
	})
	return emergency.New(repo, emergency.Options{Logger: a.logger})
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// catalogView is what a one-shot command shows: the loaded records, or the
// fallback set together with the load failure.
type catalogView struct {
	Records        []models.DatasetRecord
	FallbackSource catalog.FallbackSource
	LoadErr        error
}

// loadCatalog runs one load cycle, retries included, and waits for it to
// settle.
func (a *app) loadCatalog(ctx context.Context) (catalogView, error) {
	if a.controller == nil {
		if err := a.openCatalog(ctx); err != nil {
			return catalogView{}, err
		}
	}
	a.controller.Fetch()
	snap, err := a.controller.Wait(ctx)
	if err != nil {
		return catalogView{}, err
	}
	if snap.State == catalog.StateSuccess {
		return catalogView{Records: snap.Data}, nil
	}

	loadErr := snap.Err
	if loadErr == nil {
		loadErr = fmt.Errorf("catalog did not load")
	}
	records, src := a.controller.Fallback(ctx)
	a.logger.Warn("showing fallback datasets", "source", string(src), "datasets", len(records), "error", loadErr.Error())
	return catalogView{Records: records, FallbackSource: src, LoadErr: loadErr}, nil
}

// finish writes the rendered output and surfaces a load failure so the
// command exits non-zero even when fallback data was shown.
func finish(cmd *cobra.Command, view catalogView, rendered string) error {
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
		return err
	}
	if view.LoadErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "catalog unavailable, showing %s data\n", view.FallbackSource)
		return fmt.Errorf("load catalog: %w", view.LoadErr)
	}
	return nil
}
