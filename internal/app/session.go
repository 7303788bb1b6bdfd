package app

import (
	"fmt"

	"github.com/samvad-hq/events-client/internal/config"
	"github.com/samvad-hq/events-client/internal/logger"
	"github.com/samvad-hq/events-client/internal/storage"
	"github.com/samvad-hq/events-client/pkg/eventsapi"
	"github.com/samvad-hq/events-client/pkg/httpclient"
)

// Session wires config, cookie storage and the HTTP transport into an events API client.
// It owns the cookie store and must be closed.
type Session struct {
	cfg    *config.Config
	store  storage.Store
	http   *httpclient.RestyClient
	Client *eventsapi.Client
	Events *eventsapi.Events
	log    logger.Logger
}

// NewSession builds a session from config.
func NewSession(cfg *config.Config, log logger.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	storeOpts := storage.Options{
		RecordTTL:       cfg.CookieTTL,
		CleanupInterval: cfg.CookieCleanupInterval,
	}
	store, err := storage.NewStore(cfg.CookieStore, cfg.CookieStorePath, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("init cookie store: %w", err)
	}
	log.DebugObj("cookie store initialized", "cookie_store_config", map[string]any{
		"type":                     cfg.CookieStore,
		"path":                     cfg.CookieStorePath,
		"ttl_seconds":              int(cfg.CookieTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.CookieCleanupInterval.Seconds()),
	})

	jar, err := storage.NewCookieJar(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := httpclient.Options{Jar: jar, UserAgent: cfg.UserAgent}
	if logger.S != nil {
		opts.Logger = logger.S
	}
	transport := httpclient.NewRestyClient(opts)

	fallback, source := selectFallback(cfg, transport)
	log.DebugObj("fallback selected", "fallback_meta", map[string]any{
		"enabled": cfg.FallbackEnabled,
		"source":  source,
	})

	client, err := eventsapi.New(eventsapi.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.RequestTimeout,
		Fallback: fallback,
	}, transport, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build events client: %w", err)
	}

	return &Session{
		cfg:    cfg,
		store:  store,
		http:   transport,
		Client: client,
		Events: eventsapi.NewEvents(client),
		log:    log,
	}, nil
}

// selectFallback picks the read fallback: an explicit URL wins over a file, and the
// bundled dataset is used when neither is configured.
func selectFallback(cfg *config.Config, transport httpclient.Client) (eventsapi.Fallback, string) {
	switch {
	case !cfg.FallbackEnabled:
		return nil, "disabled"
	case cfg.FallbackURL != "":
		return eventsapi.URLFallback(transport, cfg.FallbackURL, cfg.RequestTimeout), cfg.FallbackURL
	case cfg.FallbackFile != "":
		return eventsapi.FileFallback(cfg.FallbackFile), cfg.FallbackFile
	default:
		return eventsapi.BundledFallback(), "bundled"
	}
}

// Close releases idle connections and the cookie store, logging any errors encountered.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.http != nil {
		s.http.CloseIdleConnections()
	}
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.log.ErrorObj("cookie store close failed", "error", err)
	}
}
