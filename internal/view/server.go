package view

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/samvad-hq/samvad-list-loader/internal/logger"
)

// Server exposes the board over HTTP.
type Server struct {
	echo  *echo.Echo
	board *Board
	log   logger.Logger
}

// NewServer wires the board routes onto a fresh echo instance.
func NewServer(board *Board, log logger.Logger) *Server {
	log = logger.Ensure(log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.DebugObj("http request", "request", map[string]any{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			})
			return nil
		},
	}))

	s := &Server{echo: e, board: board, log: log}
	e.GET("/healthz", s.health)
	e.GET("/lists", s.lists)
	e.GET("/lists/:id", s.list)
	e.POST("/lists/:id/refresh", s.refresh)
	e.DELETE("/lists/:id", s.detach)
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"panels": s.board.Counts(),
	})
}

func (s *Server) lists(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"lists": s.board.Panels()})
}

func (s *Server) list(c echo.Context) error {
	p, ok := s.board.Panel(strings.TrimSpace(c.Param("id")))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown list"})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) refresh(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	seq, err := s.board.Refresh(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	if seq == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "list is closed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"id": id, "seq": seq})
}

func (s *Server) detach(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if !s.board.Detach(id) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown list"})
	}
	s.log.InfoObj("list detached", "panel", map[string]any{"source_id": id})
	return c.NoContent(http.StatusNoContent)
}
