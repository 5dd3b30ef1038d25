package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/repository"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/call"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"
)

// Controller is the session lifecycle the server drives. *call.Controller satisfies it.
type Controller interface {
	Connect(ctx context.Context, cfg call.Config) (*call.Session, error)
	Disconnect() *call.Session
	Status() call.Status
	Subscribe() *call.Subscription
}

// ToolRunner executes scheduling tools outside of a call.
type ToolRunner interface {
	Has(name string) bool
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
}

type Server struct {
	ctrl     Controller
	profiles *model.Profiles
	auth     Auth
	baseAuth model.AuthContext
	tools    ToolRunner
	repo     repository.Repository
	origins  []string
	engine   *gin.Engine
}

type Option func(*Server)

func WithAuth(auth Auth) Option {
	return func(s *Server) {
		s.auth = auth
	}
}

// WithCalendarAuth is used for sessions whose connect request carries no token.
func WithCalendarAuth(auth model.AuthContext) Option {
	return func(s *Server) {
		s.baseAuth = auth
	}
}

func WithTools(tools ToolRunner) Option {
	return func(s *Server) {
		s.tools = tools
	}
}

func WithRepository(repo repository.Repository) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

// WithOriginPatterns allows cross-origin websocket clients.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.origins = patterns
	}
}

func New(ctrl Controller, profiles *model.Profiles, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ctrl:     ctrl,
		profiles: profiles,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", s.auth.middleware())
	{
		api.GET("/session", s.handleStatus)
		api.POST("/session/connect", s.handleConnect)
		api.POST("/session/disconnect", s.handleDisconnect)
		api.GET("/events", s.handleEvents)
		api.POST("/tools/:name", s.handleTool)
		api.GET("/bookings", s.handleListBookings)
		api.GET("/calls/:id", s.handleGetCall)
	}

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "server failed", goerr.V("addr", addr))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down server")
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logging.From(c.Request.Context()).Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

type connectRequest struct {
	Profile      string `json:"profile"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	profile, err := s.profiles.Resolve(req.Profile)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "profiles": s.profiles.Names()})
		return
	}

	auth := s.baseAuth
	if req.AccessToken != "" || req.RefreshToken != "" {
		auth.AccessToken = req.AccessToken
		auth.RefreshToken = req.RefreshToken
	}

	session, err := s.ctrl.Connect(c.Request.Context(), call.Config{Profile: profile, Auth: auth})
	if err != nil {
		logging.From(c.Request.Context()).Warn("connect failed", "error", err)
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "status": s.ctrl.Status()})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	session := s.ctrl.Disconnect()
	if session == nil {
		c.JSON(http.StatusOK, gin.H{"disconnected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": true, "session_id": session.ID})
}

func (s *Server) handleTool(c *gin.Context) {
	name := c.Param("name")
	if s.tools == nil || !s.tools.Has(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool", "name": name})
		return
	}

	args := map[string]any{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "arguments must be a JSON object"})
			return
		}
	}

	resp, err := s.tools.Execute(c.Request.Context(), genai.FunctionCall{Name: name, Args: args})
	if err != nil {
		c.JSON(http.StatusOK, model.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp.Response)
}

func (s *Server) handleListBookings(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no repository configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultListLimit)))
	bookings, err := s.repo.ListBookings(c.Request.Context(), limit)
	if err != nil {
		logging.From(c.Request.Context()).Error("failed to list bookings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bookings"})
		return
	}
	if bookings == nil {
		bookings = []*model.BookingRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (s *Server) handleGetCall(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no repository configured"})
		return
	}

	log, err := s.repo.GetCallLog(c.Request.Context(), model.SessionID(c.Param("id")))
	if err != nil {
		logging.From(c.Request.Context()).Error("failed to get call log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get call log"})
		return
	}
	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, log)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrProviderAuth):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
