// Package probe waits for the platform database to accept connections
// before any phase that touches it runs. The result is explicit: callers
// receive either a report of the successful attempt or the exhaustion
// error, and the boot sequence treats exhaustion as fatal instead of
// carrying on against a database that never came up.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/retry"
)

// Pinger is the slice of the pgx pool surface the prober touches, so tests
// can inject a fake without standing up a real database.
type Pinger interface {
	Ping(ctx context.Context) error
	Close()
}

// Report describes a probe that eventually succeeded.
type Report struct {
	Attempts int           // attempts used, including the successful one
	Elapsed  time.Duration // wall time from first attempt to success
}

// Prober retries database connections on a fixed schedule until one
// succeeds or the attempt budget runs out.
type Prober struct {
	dsn     string
	cfg     config.ProbeConfig
	policy  retry.Policy
	logger  *slog.Logger
	connect func(ctx context.Context, dsn string) (Pinger, error)
}

func New(cfg config.ProbeConfig, dsn string, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.IntervalDuration()
	return &Prober{
		dsn: dsn,
		cfg: cfg,
		policy: retry.Policy{
			Mode:       config.NormalizeRetryBackoff(string(cfg.Backoff)),
			Initial:    interval,
			Max:        interval,
			MaxRetries: cfg.Attempts,
		},
		logger:  logger,
		connect: realConnect,
	}
}

// Run attempts the configured number of connections and returns a Report
// on the first success. The error branch carries the exhaustion, already
// classified fatal: a boot that cannot reach its database has nothing
// useful left to do.
func (p *Prober) Run(ctx context.Context) foundation.Result[Report, error] {
	attempts := p.cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := p.ping(ctx)
		if err == nil {
			report := Report{Attempts: attempt, Elapsed: time.Since(start)}
			p.logger.Info("database ready",
				logfields.Attempt(attempt),
				logfields.DurationMS(float64(report.Elapsed.Milliseconds())))
			return foundation.Ok[Report, error](report)
		}
		lastErr = err

		p.logger.Warn("database not ready",
			logfields.Attempt(attempt),
			slog.Int("remaining", attempts-attempt),
			logfields.Error(err))

		if attempt == attempts {
			break
		}
		if waitErr := p.policy.Wait(ctx, attempt); waitErr != nil {
			interrupted := foundation.ProbeError("probe interrupted").
				Fatal().
				WithCause(waitErr).
				WithContext(foundation.Fields{"attempts": attempt}).
				Build()
			return foundation.Err[Report, error](interrupted)
		}
	}

	exhausted := foundation.ProbeError(
		fmt.Sprintf("database unreachable after %d attempts", attempts)).
		Fatal().
		WithCause(lastErr).
		WithContext(foundation.Fields{
			"attempts": attempts,
			"elapsed":  time.Since(start).String(),
		}).
		Build()
	return foundation.Err[Report, error](exhausted)
}

// ping opens a fresh connection for each attempt. Reusing a pool across
// attempts would hide DNS and auth changes while the database container
// is still starting.
func (p *Prober) ping(ctx context.Context) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeoutDuration())
	defer cancel()

	conn, err := p.connect(attemptCtx, p.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Ping(attemptCtx)
}

func realConnect(ctx context.Context, dsn string) (Pinger, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}
	return pool, nil
}
