package api

import (
	"net"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/documentai/docai/docs"
	"github.com/documentai/docai/internal/api/handler"
	"github.com/documentai/docai/internal/api/middleware"
	"github.com/documentai/docai/internal/core/ports"
)

// AgentDeps are the collaborators of the local session agent.
type AgentDeps struct {
	// Addr is the listen address; its port is required in the Host header.
	Addr      string
	Session   ports.Session
	Documents ports.DocumentService
	Batch     handler.BatchUploader
	Readiness map[string]ports.Pinger
	Log       zerolog.Logger
}

// NewAgentRouter builds the Echo instance serving the session store and the
// document proxy to local consumers.
func NewAgentRouter(d AgentDeps) *echo.Echo {
	e := newEcho("agent", d.Log, d.Readiness)
	e.Use(middleware.LoopbackOnly(listenPort(d.Addr)))

	// --- Dependencies ---
	sessionHandler := handler.NewSessionHandler(d.Session)
	documentHandler := handler.NewDocumentHandler(d.Documents, d.Batch)

	documentHandler.SessionChanged(d.Session.Snapshot())
	e.Server.RegisterOnShutdown(d.Session.Subscribe(documentHandler.SessionChanged))

	// --- Session routes ---
	e.GET("/session", sessionHandler.Get)
	e.POST("/session/login", sessionHandler.Login)
	e.POST("/session/signup", sessionHandler.Signup)
	e.POST("/session/logout", sessionHandler.Logout)
	e.PUT("/session/credential", sessionHandler.SetCredential)

	// --- Document routes ---
	e.GET("/files", documentHandler.ListFiles)
	e.DELETE("/files/:id", documentHandler.DeleteFile)
	e.POST("/upload", documentHandler.Upload)
	e.POST("/chat", documentHandler.Chat)
	e.GET("/chat/:fileID", documentHandler.Transcript)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// listenPort returns the fixed port of addr, or "" when any port is allowed.
func listenPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "0" {
		return ""
	}
	return port
}

// NewAuthStubRouter builds the development identity server.
func NewAuthStubRouter(authService ports.AuthService, jwtSecret string, readiness map[string]ports.Pinger, log zerolog.Logger) *echo.Echo {
	e := newEcho("authstub", log, readiness)

	authHandler := handler.NewAuthHandler(authService)
	authMiddleware := middleware.Auth(jwtSecret)

	// --- Auth routes ---
	g := e.Group("/api/auth")
	g.POST("/signup", authHandler.Signup)
	g.POST("/login", authHandler.Login)
	g.GET("/me", authHandler.Me, authMiddleware)

	return e
}

// newEcho applies the middleware and probes shared by both servers. Each
// server gets its own HTTP metrics registry so that several can coexist in
// one process.
func newEcho(subsystem string, log zerolog.Logger, readiness map[string]ports.Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	reg := prometheus.NewRegistry()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "docai",
		Subsystem:  subsystem,
		Registerer: reg,
	}))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(readiness)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, reg},
	}))

	return e
}
