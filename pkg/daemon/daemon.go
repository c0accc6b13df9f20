// Package daemon assembles a running vault from configuration: control
// plane store, index, spool, provider pools, the workflow coordinator,
// and the management API. The daemon owns the lifecycle of everything it
// builds; Close tears it down in reverse order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/api"
	"github.com/nntpvault/nntpvault/pkg/config"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/download"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/index/badger"
	"github.com/nntpvault/nntpvault/pkg/index/postgres"
	"github.com/nntpvault/nntpvault/pkg/metrics"
	promexport "github.com/nntpvault/nntpvault/pkg/metrics/prometheus"
	"github.com/nntpvault/nntpvault/pkg/nntp"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/registry"
	"github.com/nntpvault/nntpvault/pkg/scanner"
	"github.com/nntpvault/nntpvault/pkg/spool"
	"github.com/nntpvault/nntpvault/pkg/spool/s3"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
	"github.com/nntpvault/nntpvault/pkg/upload"
)

// Daemon is a fully wired vault instance.
type Daemon struct {
	cfg *config.Config

	reg     *registry.Registry
	coord   *coordinator.Coordinator
	ids     *identity.Service
	keyring *auth.Keyring

	apiServer     *api.Server
	metricsServer *http.Server

	// adminPassword is set only when New generated one for a freshly
	// bootstrapped admin user. Shown once by the caller, never stored.
	adminPassword string

	closeOnce sync.Once
	closeErr  error
}

// New builds a daemon from the given configuration. The configuration
// must already be validated (config.Load does this). On success the
// daemon owns every resource it opened; call Close or Serve.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	d := &Daemon{cfg: cfg, reg: registry.NewRegistry()}

	if err := d.build(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) build(ctx context.Context) error {
	cfg := d.cfg

	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("control plane store: %w", err)
	}
	d.reg.SetStore(cpStore)

	idx, err := openIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	d.reg.SetIndex(idx)

	stage, err := openSpool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	d.reg.SetSpool(stage)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		promexport.RegisterPoolStatsCollector(d.reg)
	}

	for _, pc := range cfg.Providers {
		p, err := pool.New(pool.Config{
			Name:           pc.Name,
			MinIdle:        pc.MinIdle,
			MaxOpen:        pc.MaxConnections,
			IdleTimeout:    pc.IdleTimeout,
			MaxLifetime:    pc.MaxLifetime,
			AcquireTimeout: pc.AcquireTimeout,
		}, dialFunc(pc, cfg.Download.ArticleTimeout))
		if err != nil {
			return fmt.Errorf("provider pool %q: %w", pc.Name, err)
		}
		if err := d.reg.RegisterProvider(pc.Name, p, pc.Posting); err != nil {
			return fmt.Errorf("register provider %q: %w", pc.Name, err)
		}
		logger.Info("Provider registered",
			"name", pc.Name,
			"host", pc.Host,
			"tls", pc.TLS,
			"posting", pc.Posting,
			"max_connections", pc.MaxConnections,
		)
	}

	posting, err := d.reg.PostingProvider()
	if err != nil {
		return fmt.Errorf("posting provider: %w", err)
	}

	d.ids = identity.NewService(cpStore)

	keys := identity.NewKeyCache()
	d.coord, err = coordinator.New(coordinator.Deps{
		Store:     cpStore,
		Index:     idx,
		Spool:     stage,
		Posting:   posting,
		Providers: d.reg.ProviderPools(),
		Keys:      keys,
	}, coordinator.Config{
		SegmentSize: uint32(cfg.Upload.SegmentSize),
		Redundancy:  cfg.Upload.RedundancyLevel,
		Scanner:     scanner.Config{},
		Upload: upload.Config{
			Workers:        cfg.Upload.Workers,
			QueueSize:      cfg.Upload.QueueSize,
			MaxAttempts:    cfg.Upload.RetriesMax,
			InitialBackoff: cfg.Upload.RetryBackoffBase,
			MaxBackoff:     cfg.Upload.RetryBackoffCap,
			From:           cfg.Upload.From,
			VerifyOnResume: cfg.Upload.VerifyOnResume,
		},
		Download: download.Config{
			Workers: cfg.Download.Workers,
		},
	})
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	if err := d.bootstrapAdmin(ctx, cpStore); err != nil {
		return err
	}

	if cfg.API.IsEnabled() {
		jwt, err := auth.NewJWTService(auth.JWTConfig{
			Secret:               cfg.API.JWTSecret,
			AccessTokenDuration:  cfg.API.AccessTokenTTL,
			RefreshTokenDuration: cfg.API.RefreshTokenTTL,
		})
		if err != nil {
			return fmt.Errorf("JWT service: %w", err)
		}
		d.keyring = auth.NewKeyring()

		deps := api.RouterDeps{
			Registry:    d.reg,
			Coordinator: d.coord,
			Store:       cpStore,
			Identity:    d.ids,
			JWT:         jwt,
			Keyring:     d.keyring,
		}
		if cfg.Metrics.Enabled {
			deps.Metrics = metrics.Handler()
			deps.APIMetrics = promexport.NewAPIMetrics()
		}
		d.apiServer = api.NewServer(cfg.API, api.NewRouter(deps))
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		d.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	return nil
}

// bootstrapAdmin creates the configured admin identity on first run. A
// generated password is surfaced through AdminPassword exactly once.
func (d *Daemon) bootstrapAdmin(ctx context.Context, cpStore store.Store) error {
	username := d.cfg.API.AdminUser
	if username == "" {
		return nil
	}

	_, err := cpStore.GetUser(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("admin lookup: %w", err)
	}

	password := d.cfg.API.AdminPassword
	if password == "" {
		password, err = crypto.RandomHex(16)
		if err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		d.adminPassword = password
	}

	if _, err := d.ids.CreateUser(ctx, username, password, models.RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap admin user: %w", err)
	}
	logger.Info("Admin user created", "username", username)
	return nil
}

func openIndex(ctx context.Context, cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Backend {
	case "", "badger":
		return badger.New(cfg.Index.Badger)
	case "postgres":
		return postgres.New(ctx, cfg.Index.Postgres)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func openSpool(ctx context.Context, cfg *config.Config) (spool.Spool, error) {
	switch cfg.Spool.Backend {
	case "", "fs":
		return spool.NewFS(spool.FSConfig{
			BasePath:  cfg.Spool.Path,
			CreateDir: true,
		})
	case "s3":
		s3cfg := cfg.Spool.S3
		client, err := s3.NewClientFromConfig(ctx,
			s3cfg.Endpoint,
			s3cfg.Region,
			s3cfg.AccessKey,
			s3cfg.SecretKey,
			s3cfg.ForcePathStyle,
		)
		if err != nil {
			return nil, err
		}
		return s3.New(ctx, s3.Config{
			Client:    client,
			Bucket:    s3cfg.Bucket,
			KeyPrefix: s3cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown spool backend %q", cfg.Spool.Backend)
	}
}

func dialFunc(pc config.ProviderConfig, ioTimeout time.Duration) pool.DialFunc {
	cc := nntp.ClientConfig{
		Host:          pc.Host,
		Port:          pc.Port,
		TLS:           pc.TLS,
		TLSSkipVerify: pc.TLSSkipVerify,
		Username:      pc.Username,
		Password:      pc.Password,
		IOTimeout:     ioTimeout,
	}
	return func(ctx context.Context) (nntp.Session, error) {
		return nntp.Dial(ctx, cc)
	}
}

// AdminPassword returns the password generated for a freshly created
// admin user, or "" when no user was created or the password came from
// configuration. Callers should print it once and discard it.
func (d *Daemon) AdminPassword() string { return d.adminPassword }

// Coordinator exposes the workflow coordinator, mainly for tests.
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coord }

// Registry exposes the provider registry, mainly for tests.
func (d *Daemon) Registry() *registry.Registry { return d.reg }

// APIPort returns the port the management API listens on, or 0 when the
// API is disabled.
func (d *Daemon) APIPort() int {
	if d.apiServer == nil {
		return 0
	}
	return d.apiServer.Port()
}

// Serve runs the daemon until ctx is cancelled or a server fails, then
// shuts everything down. Resume of stranded upload runs happens inside
// the coordinator when uploads are restarted; Serve itself only hosts
// the HTTP surfaces.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if d.apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.apiServer.Start(ctx); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	if d.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Metrics server listening", "port", d.cfg.Metrics.Port)
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
				cancel()
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer sdCancel()
			_ = d.metricsServer.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	var serveErr error
	select {
	case serveErr = <-errCh:
	default:
	}

	if err := d.Close(); err != nil {
		if serveErr == nil {
			serveErr = err
		} else {
			logger.Error("Shutdown error", "error", err)
		}
	}
	return serveErr
}

// Close stops the coordinator, wipes cached key material, and releases
// every backend handle. Safe to call more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		timeout := d.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		if d.coord != nil {
			done := make(chan struct{})
			go func() {
				d.coord.Shutdown()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("coordinator shutdown timed out after %s", timeout))
			}
		}
		if d.keyring != nil {
			d.keyring.Clear()
		}
		if d.ids != nil {
			d.ids.Reset()
		}
		if err := d.reg.Close(); err != nil {
			errs = append(errs, err)
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}
