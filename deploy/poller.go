package deploy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cvmcloud/deploy-client/api"
)

// Monitor configuration defaults.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 36
	DefaultQueryTimeout = 8 * time.Second

	// consecutive query errors before the loop inserts one extended pause
	errorPauseThreshold = 3
)

// Outcome is the terminal state of a monitoring session.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// MonitorResult is the final observation of a monitoring session. Snapshot
// is nil only when the session timed out without a single successful query.
type MonitorResult struct {
	Outcome  Outcome
	Snapshot *api.DeploymentStatus
}

// Observer receives monitoring events. Each method fires exactly once per
// transition; implementations must not block for long since they run on the
// polling goroutine. Embed NopObserver to implement a subset.
type Observer interface {
	// OnStatusChange fires when the observed status differs from the
	// previous one, at most once per change. The first observed status is a
	// baseline and does not fire.
	OnStatusChange(oldStatus, newStatus string, snapshot *api.DeploymentStatus)

	// OnSuccess fires once when the deployment reaches running.
	OnSuccess(snapshot *api.DeploymentStatus)

	// OnFailure fires once when the deployment reports a failure status.
	OnFailure(snapshot *api.DeploymentStatus)

	// OnTimeout fires once when MaxAttempts is exhausted while still
	// polling. The snapshot is the last one obtained, or nil if none was.
	OnTimeout(snapshot *api.DeploymentStatus)

	// OnError fires on every failed status query. Query errors never
	// terminate the session.
	OnError(attempt int, err error)
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

func (NopObserver) OnStatusChange(string, string, *api.DeploymentStatus) {}
func (NopObserver) OnSuccess(*api.DeploymentStatus)                      {}
func (NopObserver) OnFailure(*api.DeploymentStatus)                      {}
func (NopObserver) OnTimeout(*api.DeploymentStatus)                      {}
func (NopObserver) OnError(int, error)                                   {}

// StatusProvider is the status-query surface the poller needs. *Client
// implements it; tests substitute scripted providers.
type StatusProvider interface {
	GetStatus(ctx context.Context, appID string) (*api.DeploymentStatus, error)
	GetNetworkInfo(ctx context.Context, appID string) (*api.NetworkInfo, error)
}

// MonitorConfig configures one monitoring session. The zero value of each
// field takes the package default; a nil Observer means no notifications.
type MonitorConfig struct {
	Interval     time.Duration
	MaxAttempts  int
	QueryTimeout time.Duration
	Observer     Observer
}

func (cfg MonitorConfig) withDefaults() MonitorConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return cfg
}

// Poller drives bounded polling sessions against the status operation. A
// Poller holds no per-session state; independent Monitor calls may run
// concurrently.
type Poller struct {
	provider StatusProvider
	log      *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(provider StatusProvider, log *slog.Logger) *Poller {
	return &Poller{provider: provider, log: log}
}

// Monitor polls the deployment status until it reaches a terminal state or
// MaxAttempts is exhausted. Query errors are reported through the observer
// and never terminate the session. The returned error is non-nil only when
// the context is canceled; all other outcomes are described by the result.
//
// The wall-clock cadence tracks the configured interval: the wait before the
// next iteration is the interval minus the time the iteration itself took,
// floored at zero. An iteration that just failed its query waits only half
// the interval to retry sooner, and every third consecutive error inserts
// one extended pause of twice the interval instead of oscillating between
// normal and extended pacing.
func (p *Poller) Monitor(ctx context.Context, appID string, cfg MonitorConfig) (*MonitorResult, error) {
	cfg = cfg.withDefaults()
	obs := cfg.Observer

	var lastSnapshot *api.DeploymentStatus
	lastStatus := ""
	consecutiveErrors := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		snapshot, err := p.queryStatus(ctx, appID, cfg.QueryTimeout)
		queryFailed := err != nil

		if queryFailed {
			consecutiveErrors++
			p.log.Debug("status query failed",
				slog.String("app_id", appID),
				slog.Int("attempt", attempt),
				slog.Int("consecutive_errors", consecutiveErrors),
				"err", err)
			obs.OnError(attempt, err)

			if consecutiveErrors >= errorPauseThreshold {
				if err := sleepCtx(ctx, 2*cfg.Interval); err != nil {
					return nil, err
				}
				// Decrement instead of reset so a sustained error condition
				// keeps degraded pacing rather than oscillating.
				consecutiveErrors--
			}
		} else {
			consecutiveErrors = 0
			lastSnapshot = snapshot
			status := snapshot.Status

			// The first observed status is a baseline, not a change.
			if lastStatus != "" && status != lastStatus {
				obs.OnStatusChange(lastStatus, status, snapshot)
			}
			lastStatus = status

			switch {
			case strings.EqualFold(status, "running"):
				p.enrich(ctx, appID, cfg.QueryTimeout, snapshot)
				obs.OnSuccess(snapshot)
				return &MonitorResult{Outcome: OutcomeSucceeded, Snapshot: snapshot}, nil

			case isFailureStatus(status):
				obs.OnFailure(snapshot)
				return &MonitorResult{Outcome: OutcomeFailed, Snapshot: snapshot}, nil
			}
		}

		if attempt < cfg.MaxAttempts {
			target := cfg.Interval
			if queryFailed {
				target = cfg.Interval / 2
			}
			if wait := target - time.Since(start); wait > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
			}
		}
	}

	obs.OnTimeout(lastSnapshot)
	return &MonitorResult{Outcome: OutcomeTimedOut, Snapshot: lastSnapshot}, nil
}

func (p *Poller) queryStatus(ctx context.Context, appID string, timeout time.Duration) (*api.DeploymentStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.provider.GetStatus(queryCtx, appID)
}

// enrich attaches network info to a successful snapshot. Best effort: a
// failure here changes only the richness of the result, not the outcome.
func (p *Poller) enrich(ctx context.Context, appID string, timeout time.Duration, snapshot *api.DeploymentStatus) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := p.provider.GetNetworkInfo(queryCtx, appID)
	if err != nil {
		p.log.Debug("network info enrichment failed",
			slog.String("app_id", appID),
			"err", err)
		return
	}
	snapshot.PublicURLs = info.PublicURLs
}

// isFailureStatus matches terminal failure statuses by case-insensitive
// substring, covering variants like "failed", "error", "deploy_failed".
func isFailureStatus(status string) bool {
	lowered := strings.ToLower(status)
	return strings.Contains(lowered, "error") || strings.Contains(lowered, "fail")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
