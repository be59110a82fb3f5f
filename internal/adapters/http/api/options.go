package api

import (
	"time"

	"github.com/okian/cigame/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithAuthorizer gates the administrative routes.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRequestTimeout bounds the time spent in a handler.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
