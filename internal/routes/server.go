package routes

import (
	"context"
	"log/slog"
	"time"

	"table-call/internal/config"
	"table-call/internal/dashboard"
	"table-call/internal/jwt"
	"table-call/internal/push"
	"table-call/internal/storage"
	"table-call/internal/tablecode"
	"table-call/internal/tableview"
)

// Backend is everything the HTTP surface forwards to the café backend.
type Backend interface {
	tableview.Backend
	dashboard.Backend
}

// LocationStore is the part of the storage provider the routes read.
type LocationStore interface {
	ListLocations(ctx context.Context) ([]storage.Location, error)
	GetLocation(ctx context.Context, id int) (*storage.Location, error)
	GetSchemaVersion(ctx context.Context) (int, error)
}

// Server carries the dependencies shared by all handlers.
type Server struct {
	Cfg     *config.Config
	Codec   *tablecode.Codec
	Backend Backend
	Views   *tableview.Registry
	// Storage may be nil, the built in roster is used then.
	Storage LocationStore
	// Signer is nil when no secret is configured. Admin routes are open then.
	Signer *jwt.Signer

	Listener push.Listener
	Bindings push.Bindings
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// viewSecret signs view ids. The table secret is used when no secret is set.
func (s *Server) viewSecret() []byte {
	if s.Cfg.Secret != "" {
		return []byte(s.Cfg.Secret)
	}
	return []byte(s.Cfg.TableSecret)
}

func (s *Server) viewOptions(id string) tableview.Options {
	return tableview.Options{
		ID:               id,
		CallCooldown:     s.Cfg.CallCooldown,
		FeedbackCooldown: s.Cfg.FeedbackCooldown,
		NoticeTTL:        s.Cfg.NoticeTTL,
		Listener:         s.Listener,
		Bindings:         s.Bindings,
		Logger:           s.logger(),
		Now:              s.Now,
	}
}

// roster returns the configured locations, or the built in roster when no
// store is configured.
func (s *Server) roster(ctx context.Context) ([]tablecode.Location, error) {
	if s.Storage == nil {
		return tablecode.DefaultRoster, nil
	}
	locations, err := s.Storage.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	return storage.Roster(locations), nil
}

// locationName resolves a location id to its display name.
func (s *Server) locationName(ctx context.Context, id int) string {
	roster, err := s.roster(ctx)
	if err != nil {
		s.logger().Warn("Failed to load roster", "error", err)
		return ""
	}
	for _, l := range roster {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}
