// Package httpapi exposes bot health and warning statistics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"nuclight.org/thread-guard-bot/app/moderator"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

type Snapshotter interface {
	Snapshot(ctx context.Context) ([]moderator.WarningStatus, error)
}

type Server struct {
	Log      logger.Logger
	Addr     string
	Warnings Snapshotter

	// Revision is reported by /healthz
	Revision string

	started time.Time
}

type warningJSON struct {
	UserID           int64     `json:"user_id"`
	LastWarning      time.Time `json:"last_warning"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Available        bool      `json:"available"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/warnings", s.warnings)

	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:           s.Addr,
		Handler:        s.Handler(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("http server started", "addr", s.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}

	err = <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"revision":       s.Revision,
		"uptime_seconds": int64(time.Since(s.started) / time.Second),
	})
}

func (s *Server) warnings(c *gin.Context) {
	statuses, err := s.Warnings.Snapshot(c.Request.Context())
	if err != nil {
		s.Log.Error("loading warnings snapshot", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load warnings"})
		return
	}

	result := make([]warningJSON, 0, len(statuses))
	for _, st := range statuses {
		result = append(result, warningJSON{
			UserID:           st.UserID,
			LastWarning:      st.LastWarning.UTC(),
			ElapsedSeconds:   int64(st.Elapsed / time.Second),
			RemainingSeconds: int64(st.Remaining / time.Second),
			Available:        st.Available(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"warnings": result})
}
