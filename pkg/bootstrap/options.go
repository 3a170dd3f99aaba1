package bootstrap

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option is a functor to configure Ensure
type Option func(*ensurer)

// WithFs sets the filesystem used to probe and clean up the target
func WithFs(fs afero.Fs) Option {
	return func(e *ensurer) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithCloner sets the backend performing the clone
func WithCloner(c Cloner) Option {
	return func(e *ensurer) {
		if c != nil {
			e.cloner = c
		}
	}
}

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(e *ensurer) {
		if l != nil {
			e.l = l
		}
	}
}
