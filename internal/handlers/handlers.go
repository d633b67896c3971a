package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/scamshield/internal/landing"
	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/repository"
	"github.com/example/scamshield/internal/scanner"
	"github.com/example/scamshield/internal/session"
	"github.com/example/scamshield/internal/web"
)

// MaxUploadSize is the default cap on uploaded screenshots.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for form boundaries and headers on top of
// the file itself.
const multipartOverhead = 1 << 20

// scanningRefreshSeconds is how often a scanning page reloads itself to pick
// up the pending navigation.
const scanningRefreshSeconds = 1

// ScanLookup finds recorded scans.
type ScanLookup interface {
	FindByScanID(ctx context.Context, scanID string) (*repository.ScanLog, error)
}

// Option configures optional routes.
type Option func(*Handler)

// WithScanLookup serves recorded scans under /api/scans/:id.
func WithScanLookup(scans ScanLookup) Option {
	return func(h *Handler) { h.scans = scans }
}

// Handler serves the landing page and its JSON API.
type Handler struct {
	sessions      *session.Manager
	scans         ScanLookup
	logger        *zap.Logger
	maxUploadSize int64
}

// RegisterRoutes wires the HTTP handlers to the Gin router. The router must
// have the web templates loaded.
func RegisterRoutes(router *gin.Engine, sessions *session.Manager, sessionMiddleware gin.HandlerFunc, logger *zap.Logger, maxUploadSize int64, opts ...Option) {
	if maxUploadSize <= 0 {
		maxUploadSize = MaxUploadSize
	}
	h := &Handler{sessions: sessions, logger: logger.Named("handlers"), maxUploadSize: maxUploadSize}
	for _, opt := range opts {
		opt(h)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pages := router.Group("/", sessionMiddleware)
	pages.GET("/", h.landingPage)
	pages.POST("/upload", h.upload)
	pages.POST("/scan", h.scan)
	pages.POST("/demo", h.demo)
	pages.GET(landing.AnalysisPath, h.analysis)

	api := router.Group("/api/page", sessionMiddleware)
	api.GET("", h.apiState)
	api.PUT("/url", h.apiSetURL)
	api.POST("/file", h.apiFile)
	api.POST("/scan", h.apiScan)
	api.POST("/demo", h.apiDemo)
	api.GET("/handoff", h.apiHandoff)

	if h.scans != nil {
		router.GET("/api/scans/:id", sessionMiddleware, h.apiScanRecord)
	}
}

type landingView struct {
	Hero          web.Hero
	Features      []web.Feature
	Placeholder   string
	Page          landing.Snapshot
	Notifications []session.Notification
	Refresh       int
}

type analysisView struct {
	Hero          web.Hero
	Handoff       landing.Handoff
	UploadedFile  bool
	Notifications []session.Notification
	Refresh       int
}

func (h *Handler) landingPage(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	snapshot, redirect := s.View()
	if redirect != "" {
		c.Redirect(http.StatusSeeOther, redirect)
		return
	}

	view := landingView{
		Hero:          web.LandingHero,
		Features:      web.Features,
		Placeholder:   web.URLPlaceholder,
		Page:          snapshot,
		Notifications: s.Notifications(),
	}
	if snapshot.Scanning {
		view.Refresh = scanningRefreshSeconds
	}
	c.HTML(http.StatusOK, "landing.tmpl", view)
}

func (h *Handler) upload(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	file, status, err := h.formFile(c, "screenshot")
	if err != nil {
		if status == http.StatusRequestEntityTooLarge {
			c.AbortWithStatus(status)
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.selectFile(c, s, file)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) scan(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	kind, err := scanner.ParseKind(c.PostForm("kind"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	page := s.Mount()
	if kind == scanner.KindURL {
		page.SetURL(c.PostForm("url"))
	}
	if err := page.SubmitScan(kind); err != nil {
		h.logRejected(s, "handlers.scan", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) demo(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.Mount().RunDemo(c.Request.Context()); err != nil {
		h.logRejected(s, "handlers.demo", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) analysis(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	handoff, ok := s.Handoff()
	if !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	s.TakeRedirect()

	sentinels := h.sessions.Sentinels(s.ID)
	ctx := c.Request.Context()
	if v, err := sentinels.Get(ctx, landing.SentinelDemoMode); err == nil && v == landing.SentinelValue {
		handoff.DemoMode = true
	}
	uploaded := handoff.UploadedFile
	if v, err := sentinels.Get(ctx, landing.SentinelUploadedFile); err == nil && v == landing.SentinelValue {
		uploaded = true
	}

	c.HTML(http.StatusOK, "analysis.tmpl", analysisView{
		Hero:          web.LandingHero,
		Handoff:       handoff,
		UploadedFile:  uploaded,
		Notifications: s.Notifications(),
	})
}

func (h *Handler) apiState(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	snapshot, redirect := s.View()
	body := gin.H{
		"page":          snapshot,
		"notifications": s.Notifications(),
	}
	if redirect != "" {
		body["navigate_to"] = redirect
	}
	c.JSON(http.StatusOK, body)
}

type setURLRequest struct {
	URL string `json:"url"`
}

func (h *Handler) apiSetURL(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req setURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	page := s.Mount()
	page.SetURL(req.URL)
	c.JSON(http.StatusOK, gin.H{"page": page.Snapshot()})
}

func (h *Handler) apiFile(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	file, status, err := h.formFile(c, "screenshot")
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if err := h.selectFile(c, s, file); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "notifications": s.Notifications()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": s.Mount().Snapshot(), "notifications": s.Notifications()})
}

type scanRequest struct {
	Kind string  `json:"kind" binding:"required"`
	URL  *string `json:"url"`
}

func (h *Handler) apiScan(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}
	kind, err := scanner.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page := s.Mount()
	if req.URL != nil {
		page.SetURL(*req.URL)
	}
	if err := page.SubmitScan(kind); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "notifications": s.Notifications()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"page": page.Snapshot(), "notifications": s.Notifications()})
}

func (h *Handler) apiDemo(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	page := s.Mount()
	if err := page.RunDemo(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "notifications": s.Notifications()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"page": page.Snapshot(), "notifications": s.Notifications()})
}

func (h *Handler) apiHandoff(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	handoff, ok := s.Handoff()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed scan"})
		return
	}
	s.TakeRedirect()
	c.JSON(http.StatusOK, handoff)
}

// apiScanRecord returns a recorded scan that belongs to the caller's session.
func (h *Handler) apiScanRecord(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	scanID := c.Param("id")
	record, err := h.scans.FindByScanID(c.Request.Context(), scanID)
	if errors.Is(err, repository.ErrScanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	if err != nil {
		logging.WithOperation(h.logger, "handlers.scan_record", s.ID).
			Error("failed to load scan", zap.String("scan_id", scanID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scan"})
		return
	}
	if record.SessionID != s.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// formFile reads the named multipart file header, enforcing the upload cap.
// Only the header is handed on; the contents are never read.
func (h *Handler) formFile(c *gin.Context, field string) (*multipart.FileHeader, int, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	file, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("upload too large")
		}
		return nil, http.StatusBadRequest, errors.New(field + " file is required")
	}
	if file.Size > h.maxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("upload too large")
	}
	return file, http.StatusOK, nil
}

func (h *Handler) selectFile(c *gin.Context, s *session.Session, file *multipart.FileHeader) error {
	err := s.Mount().SelectFile(c.Request.Context(), landing.FileRef{
		Name:        file.Filename,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		h.logRejected(s, "handlers.upload", err)
	}
	return err
}

func (h *Handler) logRejected(s *session.Session, operation string, err error) {
	logging.WithOperation(h.logger, operation, s.ID).Debug("action rejected", zap.Error(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, landing.ErrMissingURL):
		return http.StatusUnprocessableEntity
	case errors.Is(err, landing.ErrScanInProgress), errors.Is(err, landing.ErrPageClosed):
		return http.StatusConflict
	case errors.Is(err, scanner.ErrUnknownKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	s, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return nil, false
	}
	return s, true
}
