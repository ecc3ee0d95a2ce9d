package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/apperr"
	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/httpclient"
	"github.com/Zachkp/folio/internal/metrics"
	"github.com/Zachkp/folio/internal/stats"
)

const (
	statsErrorMessage = "Error fetching stats"
	visitQueueSize    = 256
)

// relayer is the part of contact.Relay the handlers use.
type relayer interface {
	Deliver(ctx context.Context, s contact.Submission) contact.Outcome
}

type server struct {
	log       *slog.Logger
	stats     stats.Fetcher
	relay     relayer
	profile   content.Profile
	metrics   *metrics.Store // nil when visitor tracking is off
	admin     *adminAuth     // nil when admin is not configured
	templates string         // glob for HTML templates, empty to skip

	// visits feeds the single metrics writer started by start.
	visits    chan visit
	wg        sync.WaitGroup
	stop      context.CancelFunc
	closeOnce sync.Once
}

type visit struct {
	ip, userAgent, path string
}

func newStatsFetcher(cfg config.Config) stats.Fetcher {
	hc := httpclient.New(cfg.UpstreamTimeout)
	return stats.NewCached(stats.NewClient(hc, cfg.Stats.BaseURL, cfg.Stats.Identity), cfg.Stats.CacheTTL)
}

func newRelay(cfg config.Config, log *slog.Logger) *contact.Relay {
	var sender contact.Sender
	switch cfg.Contact.Provider {
	case "smtp":
		sender = contact.NewSMTP(contact.SMTPConfig(cfg.Contact.SMTP))
	default:
		if cfg.Contact.Provider != "emailjs" {
			log.Warn("contact.unknown_provider", "provider", cfg.Contact.Provider, "using", "emailjs")
		}
		e := cfg.Contact.EmailJS
		hc := httpclient.New(cfg.UpstreamTimeout)
		sender = contact.NewEmailJS(hc, e.APIURL, e.PublicKey, e.PrivateKey)
	}

	return contact.NewRelay(sender,
		contact.Identity{
			RecipientName: cfg.Contact.RecipientName,
			ServiceID:     cfg.Contact.EmailJS.ServiceID,
			TemplateID:    cfg.Contact.EmailJS.TemplateID,
		},
		contact.WithProbe(contact.DialProbe{Addr: cfg.Contact.ProbeAddr, Timeout: 2 * time.Second}),
		contact.WithOfflineDemo(cfg.Contact.OfflineDemo),
		contact.WithLogger(log),
	)
}

// newServer wires every dependency from cfg. Optional pieces (metrics,
// admin, templates) that fail to initialise are logged and left off.
func newServer(cfg config.Config, log *slog.Logger) (*server, error) {
	profile, err := content.Load(cfg.ContentFile)
	if err != nil {
		return nil, err
	}

	s := &server{
		log:     log,
		stats:   newStatsFetcher(cfg),
		relay:   newRelay(cfg, log),
		profile: profile,
	}

	if cfg.DatabasePath != "" {
		store, err := metrics.Open(cfg.DatabasePath)
		if err != nil {
			log.Error("metrics.disabled", "err", err)
		} else {
			s.metrics = store
			s.visits = make(chan visit, visitQueueSize)
			log.Info("metrics.enabled", "path", cfg.DatabasePath)
		}
	}

	if cfg.AdminEnabled() {
		a, err := newAdminAuth(cfg.Admin, gin.Mode() == gin.ReleaseMode)
		if err != nil {
			log.Error("admin.disabled", "err", err)
		} else {
			s.admin = a
		}
	}

	glob := filepath.Join(cfg.TemplatesDir, "*.html")
	if matches, _ := filepath.Glob(glob); len(matches) > 0 {
		s.templates = glob
	}

	if cfg.Stats.Identity == "" {
		log.Warn("stats.identity_missing", "hint", "set STATS_IDENTITY; /api/stats will fail")
	}
	return s, nil
}

// start runs the background metrics writer and retention sweep until ctx
// ends or Close is called.
func (s *server) start(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	ctx, s.stop = context.WithCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writeVisits()
	}()
	go func() {
		defer s.wg.Done()
		s.runRetention(ctx)
	}()
}

// stopWorkers drains queued visits and waits for the workers to exit.
// Handlers must no longer be running.
func (s *server) stopWorkers() {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		if s.visits != nil {
			close(s.visits)
		}
	})
	s.wg.Wait()
}

func (s *server) Close() error {
	s.stopWorkers()
	if s.metrics != nil {
		return s.metrics.Close()
	}
	return nil
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if s.metrics != nil {
		r.Use(s.visitorTracking())
	}

	if s.templates != "" {
		r.LoadHTMLGlob(s.templates)
		r.GET("/", func(c *gin.Context) {
			c.HTML(http.StatusOK, "index.html", gin.H{"profile": s.profile})
		})
	}
	if dirExists("static") {
		r.Static("/static", "./static")
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/stats", s.handleStats)
	api.POST("/contact", s.handleContact)
	api.GET("/profile", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.profile)
	})

	if s.admin != nil {
		s.setupAdminRoutes(r)
	}
	return r
}

func (s *server) handleStats(c *gin.Context) {
	res, err := s.stats.Fetch(c.Request.Context())
	if err != nil {
		s.log.Error("stats.fetch_failed", "kind", apperr.KindOf(err), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": statsErrorMessage})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleContact relays one submission. Besides the 200 and 500 answers it
// replies 400 when the body does not parse or lacks a field, and 409 while
// an identical submission is still being delivered.
func (s *server) handleContact(c *gin.Context) {
	var sub contact.Submission
	if err := c.ShouldBind(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := sub.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out := s.relay.Deliver(c.Request.Context(), sub)
	s.recordDelivery(out)

	switch {
	case out.Delivered():
		c.JSON(http.StatusOK, gin.H{"message": contact.SuccessMessage})
	case out.Kind == apperr.KindDuplicate:
		c.JSON(http.StatusConflict, gin.H{"error": out.UserMessage()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": out.UserMessage()})
	}
}

func (s *server) recordDelivery(out contact.Outcome) {
	if s.metrics == nil {
		return
	}
	kind := string(out.Kind)
	switch {
	case out.Simulated:
		kind = "simulated"
	case out.Delivered():
		kind = "delivered"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.metrics.RecordDelivery(ctx, kind, out.StatusCode, out.Simulated); err != nil {
		s.log.Error("metrics.record_delivery_failed", "err", err)
	}
}

// visitorTracking counts page and API hits with hashed IPs. It skips
// static assets and admin pages and honours Do Not Track. Hits are queued
// for the writer and dropped when the queue is full.
func (s *server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/static/") ||
			strings.HasPrefix(path, "/admin") ||
			strings.HasPrefix(path, "/favicon") ||
			path == "/healthz" {
			c.Next()
			return
		}

		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		if s.visits != nil {
			select {
			case s.visits <- visit{ip: c.ClientIP(), userAgent: c.GetHeader("User-Agent"), path: path}:
			default:
				s.log.Warn("metrics.visit_dropped", "path", path)
			}
		}
		c.Next()
	}
}

func (s *server) writeVisits() {
	for v := range s.visits {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metrics.RecordVisit(ctx, v.ip, v.userAgent, v.path); err != nil {
			s.log.Error("metrics.record_visit_failed", "err", err)
		}
		cancel()
	}
}

// runRetention removes expired metrics rows now and then daily until ctx ends.
func (s *server) runRetention(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	sweep := func() {
		n, err := s.metrics.Cleanup(ctx, metrics.Retention)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("metrics.cleanup_failed", "err", err)
			return
		}
		if n > 0 {
			s.log.Info("metrics.cleanup", "removed", n)
		}
	}

	sweep()
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweep()
		}
	}
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
