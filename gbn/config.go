package gbn

import (
	"fmt"
	"time"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/internal/clock"
	"github.com/arloliu/go-gbn/logger"
)

// Protocol defaults.
const (
	DefaultAckTimeout = 2 * time.Second // sender's bounded wait for one ACK
	DefaultMaxRetries = 3               // consecutive timeouts before a forced slide

	MaxRetriesLimit = 255
)

// Config holds the settings shared by both session roles.
// Fault-related settings only affect the Sender.
type Config struct {
	ackTimeout time.Duration
	maxRetries int

	script   fault.Script
	recorder fault.Recorder

	clock   clock.Clock
	metrics *SessionMetrics
	logger  logger.Logger

	stateHandlers []StateChangeHandler
	roundObserver func(WindowState)
}

// NewConfig creates a Config with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		ackTimeout: DefaultAckTimeout,
		maxRetries: DefaultMaxRetries,
		recorder:   fault.Discard,
		clock:      clock.Real,
		logger:     logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.metrics == nil {
		cfg.metrics = &SessionMetrics{}
	}

	return cfg, nil
}

// AckTimeout returns the sender's ACK wait.
func (cfg *Config) AckTimeout() time.Duration { return cfg.ackTimeout }

// MaxRetries returns the number of consecutive timeouts that force the window forward.
func (cfg *Config) MaxRetries() int { return cfg.maxRetries }

// Script returns a copy of the sender's fault script.
func (cfg *Config) Script() fault.Script {
	out := make(fault.Script, len(cfg.script))
	copy(out, cfg.script)

	return out
}

// Metrics returns the session metrics.
func (cfg *Config) Metrics() *SessionMetrics { return cfg.metrics }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithAckTimeout sets how long the sender waits for an ACK before going back to the window base.
func WithAckTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: ACK timeout %v must be positive", ErrInvalidConfig, d)
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithMaxRetries sets the number of consecutive timeouts tolerated for one window base.
func WithMaxRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxRetriesLimit {
			return fmt.Errorf("%w: max retries %d out of range [1, %d]", ErrInvalidConfig, n, MaxRetriesLimit)
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithFaultScript sets the per-attempt fault codes consumed by the sender.
func WithFaultScript(script fault.Script) Option {
	return optFunc(func(cfg *Config) error {
		for i, code := range script {
			if !code.IsValid() {
				return fmt.Errorf("%w: fault script entry %d is %v", ErrInvalidConfig, i, code)
			}
		}
		cfg.script = make(fault.Script, len(script))
		copy(cfg.script, script)

		return nil
	})
}

// WithFaultRecorder sets where the sender records corrupted transmissions.
func WithFaultRecorder(r fault.Recorder) Option {
	return optFunc(func(cfg *Config) error {
		if r == nil {
			return fmt.Errorf("%w: fault recorder must not be nil", ErrInvalidConfig)
		}
		cfg.recorder = r

		return nil
	})
}

// WithClock replaces the wall clock used for the ACK timer.
func WithClock(c clock.Clock) Option {
	return optFunc(func(cfg *Config) error {
		if c == nil {
			return fmt.Errorf("%w: clock must not be nil", ErrInvalidConfig)
		}
		cfg.clock = c

		return nil
	})
}

// WithMetrics sets the metrics the session updates.
func WithMetrics(m *SessionMetrics) Option {
	return optFunc(func(cfg *Config) error {
		if m == nil {
			return fmt.Errorf("%w: metrics must not be nil", ErrInvalidConfig)
		}
		cfg.metrics = m

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrInvalidConfig)
		}
		cfg.logger = l

		return nil
	})
}

// WithStateChangeHandler registers handlers invoked on every session state change.
func WithStateChangeHandler(handlers ...StateChangeHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.stateHandlers = append(cfg.stateHandlers, handlers...)
		return nil
	})
}

// WithRoundObserver registers a function the sender calls with its window state
// after filling the window in every round.
func WithRoundObserver(fn func(WindowState)) Option {
	return optFunc(func(cfg *Config) error {
		cfg.roundObserver = fn
		return nil
	})
}
