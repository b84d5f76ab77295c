package worker

import (
	"github.com/okian/fedbench/pkg/logger"
)

type settings struct {
	name   string
	logger logger.Logger
}

// Option applies a configuration option to a Pool.
type Option func(*settings)

// WithName sets the worker name prefix used in logs.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the workers.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
