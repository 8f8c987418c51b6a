package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nzgrid/mercury-usage-exporter/internal/clock"
	"github.com/nzgrid/mercury-usage-exporter/internal/config"
	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/logger"
	"github.com/nzgrid/mercury-usage-exporter/internal/mercury"
	"github.com/nzgrid/mercury-usage-exporter/internal/tokenstore"
)

// Metric keys for the persisted cumulative states
const (
	MetricCumulativeEnergy = "cumulative_energy_kwh"
	MetricCumulativeCost   = "cumulative_cost_nzd"
)

// ErrNoCredentials means the token store holds no refresh token at all.
// Fatal for the cycle; only reauthentication fixes it.
var ErrNoCredentials = errors.New("no refresh token available, run the reauth command")

// UsageFetcher fetches hourly usage for a date range
type UsageFetcher interface {
	GetHourlyUsage(ctx context.Context, customerID, accountID, serviceID, startDate, endDate string) (*mercury.UsageResponse, error)
}

// TokenRefresher exchanges a refresh token for fresh tokens
type TokenRefresher func(ctx context.Context, tokenURL, clientID, refreshToken, scope string) (mercury.TokenResponse, error)

// TokenStore persists the credential record
type TokenStore interface {
	Load() (tokenstore.Record, error)
	Save(tokenstore.Record) error
}

// Archive persists fetched series and cumulative metric state. Optional;
// archive failures are logged, never fatal for a cycle.
type Archive interface {
	InsertHourly([]mercury.HourlyEntry) error
	LoadCumulative(metric string) (derive.CumulativeState, error)
	SaveCumulative(metric string, st derive.CumulativeState) error
}

// Snapshot is the read-only view of one successful poll. Consumers always
// see a complete snapshot; an in-flight cycle never exposes partial data.
type Snapshot struct {
	Series          []mercury.HourlyEntry
	MeasurementDate string
	WindowStart     string // inclusive, YYYY-MM-DD
	WindowEnd       string // exclusive, YYYY-MM-DD
	FetchedAt       time.Time
}

// Coordinator owns the token lifecycle and the polling cycle. It is passive
// between cycles: the caller's ticker drives Poll, and cycles never overlap
// because the caller runs them sequentially.
type Coordinator struct {
	cfg     *config.Config
	log     *logger.Logger
	clk     clock.Clock
	store   TokenStore
	fetcher UsageFetcher
	refresh TokenRefresher
	archive Archive
	loc     *time.Location

	mu            sync.RWMutex
	tokens        tokenstore.Record
	tokensLoaded  bool // explicit not-yet-loaded sentinel
	stateRestored bool
	cumEnergy     derive.CumulativeState
	cumCost       derive.CumulativeState
	snapshot      *Snapshot
	lastErr       error
	lastPoll      time.Time
	lastDuration  time.Duration
	pollsTotal    uint64
	errorsTotal   uint64
	subscribers   []func(Snapshot)
}

// New creates a coordinator wired to the real Mercury API clients
func New(cfg *config.Config, log *logger.Logger, store TokenStore, clk clock.Clock) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		log:     log.WithComponent("coordinator"),
		clk:     clk,
		store:   store,
		refresh: mercury.RefreshTokens,
		loc:     cfg.Location(),
	}
	c.fetcher = mercury.NewClient(cfg.BaseAPIURL, c.AccessToken, cfg.APISubscriptionKey, cfg.APITimeout())
	return c
}

// SetArchive attaches the usage archive. Must be called before the first Poll.
func (c *Coordinator) SetArchive(a Archive) {
	c.archive = a
}

// Subscribe registers a callback notified after every successful poll with
// the freshly published snapshot
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// AccessToken returns the current in-memory access token
func (c *Coordinator) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

// Window computes the half-open [start, end) query range for a poll at now:
// one full calendar day, delayDays behind now
func Window(now time.Time, delayDays int) (start, end string) {
	s := now.AddDate(0, 0, -delayDays)
	e := s.AddDate(0, 0, 1)
	return s.Format("2006-01-02"), e.Format("2006-01-02")
}

// Poll runs one complete polling cycle: ensure tokens, compute the query
// window, fetch (with at most one refresh-and-retry on a 401), then publish
// the snapshot and advance the cumulative metrics. On failure the previous
// snapshot stays visible to consumers.
func (c *Coordinator) Poll(ctx context.Context) error {
	started := time.Now()
	snap, err := c.runCycle(ctx)
	duration := time.Since(started)

	var (
		subs      []func(Snapshot)
		cumEnergy derive.CumulativeState
		cumCost   derive.CumulativeState
	)

	c.mu.Lock()
	c.lastPoll = c.clk.Now()
	c.lastDuration = duration
	c.lastErr = err
	c.pollsTotal++
	if err != nil {
		c.errorsTotal++
	} else {
		c.snapshot = snap
		c.cumEnergy.Advance(snap.Series, derive.Consumption)
		c.cumCost.Advance(snap.Series, derive.Cost)
		cumEnergy = c.cumEnergy
		cumCost = c.cumCost
		subs = append(subs, c.subscribers...)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error("poll cycle failed", "error", err, "duration_seconds", duration.Seconds())
		return err
	}

	c.persist(snap.Series, cumEnergy, cumCost)
	for _, fn := range subs {
		fn(*snap)
	}

	c.log.Info("poll cycle succeeded",
		"measurement_date", snap.MeasurementDate,
		"entries", len(snap.Series),
		"window_start", snap.WindowStart,
		"window_end", snap.WindowEnd,
		"duration_seconds", duration.Seconds())
	return nil
}

func (c *Coordinator) runCycle(ctx context.Context) (*Snapshot, error) {
	if err := c.ensureTokens(ctx); err != nil {
		return nil, err
	}
	c.restoreState()

	now := c.clk.Now().In(c.loc)
	start, end := Window(now, c.cfg.ReportingDelay())

	resp, err := c.fetch(ctx, start, end)
	if mercury.IsAuthExpired(err) {
		c.log.Info("access token rejected, refreshing and retrying once")
		if rerr := c.refreshAndSave(ctx); rerr != nil {
			return nil, rerr
		}
		resp, err = c.fetch(ctx, start, end)
		if mercury.IsAuthExpired(err) {
			// A freshly refreshed token was rejected too; do not loop.
			return nil, fmt.Errorf("usage API rejected a freshly refreshed token, reauthentication required: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetching hourly usage: %w", err)
	}

	series := derive.Hourly(resp)
	return &Snapshot{
		Series:          series,
		MeasurementDate: derive.MeasurementDate(series),
		WindowStart:     start,
		WindowEnd:       end,
		FetchedAt:       c.clk.Now(),
	}, nil
}

func (c *Coordinator) fetch(ctx context.Context, start, end string) (*mercury.UsageResponse, error) {
	return c.fetcher.GetHourlyUsage(ctx, c.cfg.CustomerID, c.cfg.AccountID, c.cfg.ServiceID, start, end)
}

// ensureTokens loads the credential record once, then guarantees a usable
// access token: no refresh token is fatal, a refresh token without an
// access token triggers a proactive refresh. This handles first-run and
// cleared-access-token states uniformly.
func (c *Coordinator) ensureTokens(ctx context.Context) error {
	c.mu.Lock()
	if !c.tokensLoaded {
		rec, err := c.store.Load()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("loading token store: %w", err)
		}
		c.tokens = rec
		c.tokensLoaded = true
	}
	hasRefresh := c.tokens.HasRefreshToken()
	hasAccess := c.tokens.HasAccessToken()
	c.mu.Unlock()

	if !hasRefresh {
		return ErrNoCredentials
	}
	if !hasAccess {
		return c.refreshAndSave(ctx)
	}
	return nil
}

// refreshAndSave performs one token refresh and persists the updated record
// atomically. All fields update together; the stored refresh token is kept
// when the endpoint does not rotate it.
func (c *Coordinator) refreshAndSave(ctx context.Context) error {
	c.mu.RLock()
	refreshToken := c.tokens.RefreshToken
	c.mu.RUnlock()

	resp, err := c.refresh(ctx, c.cfg.TokenURL, c.cfg.ClientID, refreshToken, c.cfg.Scope)
	if err != nil {
		return fmt.Errorf("refreshing tokens: %w", err)
	}

	c.mu.Lock()
	c.tokens.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		c.tokens.RefreshToken = resp.RefreshToken
	}
	c.tokens.ExpiresIn = resp.ExpiresIn
	c.tokens.ObtainedAt = c.clk.Now().UTC()
	rec := c.tokens
	c.mu.Unlock()

	if err := c.store.Save(rec); err != nil {
		return fmt.Errorf("persisting refreshed tokens: %w", err)
	}
	return nil
}

// restoreState loads the persisted cumulative metric state once, before the
// first publish. Load failures reset to zero rather than aborting the cycle.
func (c *Coordinator) restoreState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateRestored {
		return
	}
	c.stateRestored = true
	if c.archive == nil {
		return
	}

	if st, err := c.archive.LoadCumulative(MetricCumulativeEnergy); err != nil {
		c.log.Warn("failed to restore cumulative energy state", "error", err)
	} else {
		c.cumEnergy = st
	}
	if st, err := c.archive.LoadCumulative(MetricCumulativeCost); err != nil {
		c.log.Warn("failed to restore cumulative cost state", "error", err)
	} else {
		c.cumCost = st
	}
}

// persist archives the fetched series and the advanced cumulative state.
// Best-effort: a failing archive must not fail an otherwise good cycle.
func (c *Coordinator) persist(series []mercury.HourlyEntry, cumEnergy, cumCost derive.CumulativeState) {
	if c.archive == nil {
		return
	}
	if err := c.archive.InsertHourly(series); err != nil {
		c.log.Warn("failed to archive hourly usage", "error", err)
	}
	if err := c.archive.SaveCumulative(MetricCumulativeEnergy, cumEnergy); err != nil {
		c.log.Warn("failed to persist cumulative energy state", "error", err)
	}
	if err := c.archive.SaveCumulative(MetricCumulativeCost, cumCost); err != nil {
		c.log.Warn("failed to persist cumulative cost state", "error", err)
	}
}

// Snapshot returns the latest published snapshot, if any
func (c *Coordinator) Snapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return *c.snapshot, true
}

// Cumulative returns the current cumulative energy and cost states
func (c *Coordinator) Cumulative() (energy, cost derive.CumulativeState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cumEnergy, c.cumCost
}

// IsReady reports whether at least one poll has succeeded
func (c *Coordinator) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot != nil
}

// LastError returns the error of the most recent poll, nil on success
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastPoll returns when the most recent poll finished
func (c *Coordinator) LastPoll() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPoll
}

// LastPollDuration returns how long the most recent poll took
func (c *Coordinator) LastPollDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDuration
}

// PollsTotal returns the number of completed poll cycles
func (c *Coordinator) PollsTotal() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollsTotal
}

// ErrorsTotal returns the number of failed poll cycles
func (c *Coordinator) ErrorsTotal() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errorsTotal
}
