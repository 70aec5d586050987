// Package usecase implements the gate decision engine: the session gate state
// machine and the scheduler loops that drive it.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexfok/gate-controller/internal/ble"
	"github.com/alexfok/gate-controller/internal/gate/domain"
	"github.com/alexfok/gate-controller/internal/metrics"
	"github.com/alexfok/gate-controller/internal/storage"
	tokendomain "github.com/alexfok/gate-controller/internal/token/domain"
)

// eventChanBuffer sizes subscriber channels. Slow subscribers drop events
// rather than block the engine.
const eventChanBuffer = 16

// TokenReader is the registry view the session gate needs: read-only lookups.
type TokenReader interface {
	Get(ctx context.Context, id string) (*tokendomain.Token, error)
	List(ctx context.Context) ([]*tokendomain.Token, error)
}

// ActivityRecorder is the event sink driven by gate transitions.
type ActivityRecorder interface {
	RecordTokenDetected(tokenID, tokenName string, rssi int, distance float64)
	RecordGateOpened(reason, tokenName string)
	RecordGateClosed(reason string)
	RecordError(message string, details map[string]any)
}

type lastSeen struct {
	name     string
	rssi     int
	distance float64
	at       time.Time
}

// SessionGate is the decision engine. It owns the gate state, the last open
// time and the session window, all guarded by a single mutex so that the
// observation-handling check-then-act sequence is atomic relative to every
// other caller. Actuator calls are made with the mutex released; the
// transitional Opening/Closing states keep concurrent callers out in the
// meantime.
type SessionGate struct {
	logger   *slog.Logger
	actuator domain.Actuator
	tokens   TokenReader
	recorder ActivityRecorder
	settings func() storage.GateSettings
	metrics  metrics.BusinessMetrics
	now      func() time.Time

	mu               sync.Mutex
	state            domain.State
	lastOpenTime     *time.Time
	sessionStartedAt *time.Time
	seen             map[string]lastSeen

	subMu       sync.Mutex
	subscribers []chan domain.Event
}

// NewSessionGate creates a session gate in the Unknown state.
func NewSessionGate(
	logger *slog.Logger,
	actuator domain.Actuator,
	tokens TokenReader,
	recorder ActivityRecorder,
	settings func() storage.GateSettings,
	businessMetrics metrics.BusinessMetrics,
) *SessionGate {
	return &SessionGate{
		logger:   logger,
		actuator: actuator,
		tokens:   tokens,
		recorder: recorder,
		settings: settings,
		metrics:  businessMetrics,
		now:      time.Now,
		state:    domain.StateUnknown,
		seen:     make(map[string]lastSeen),
	}
}

// State returns the current gate state.
func (g *SessionGate) State() domain.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SessionActive reports whether a session window is currently open.
func (g *SessionGate) SessionActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionActiveLocked(g.now())
}

func (g *SessionGate) sessionActiveLocked(now time.Time) bool {
	if g.sessionStartedAt == nil {
		return false
	}
	return now.Sub(*g.sessionStartedAt) < g.settings().SessionTimeout()
}

// Subscribe returns a channel of live gate events (detections, opens,
// closes) and a function that removes the subscription and closes the
// channel. Delivery is best-effort: a full channel drops the event instead
// of blocking the engine.
func (g *SessionGate) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, eventChanBuffer)
	g.subMu.Lock()
	g.subscribers = append(g.subscribers, ch)
	g.subMu.Unlock()

	unsubscribe := func() {
		g.subMu.Lock()
		for i, sub := range g.subscribers {
			if sub == ch {
				g.subscribers = append(g.subscribers[:i], g.subscribers[i+1:]...)
				break
			}
		}
		g.subMu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

func (g *SessionGate) publish(event domain.Event) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for _, ch := range g.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// HandleObservation processes one scan observation:
//
//  1. Record the detection unconditionally (suppress-mode semantics live in
//     the recorder) and publish it to subscribers.
//  2. Unknown or disabled tokens never actuate.
//  3. An Open or Opening gate is never re-opened.
//  4. A live session window debounces re-triggering.
//  5. Otherwise the session start is set before the open attempt, so a second
//     observation arriving during the actuator call cannot trigger a
//     duplicate open.
//
// Steps 2 to 5 run under the gate mutex; the actuator call does not.
func (g *SessionGate) HandleObservation(ctx context.Context, obs ble.Observation) {
	name := obs.ID
	token, err := g.tokens.Get(ctx, obs.ID)
	registered := err == nil
	if registered {
		name = token.Name
	}

	g.recorder.RecordTokenDetected(obs.ID, name, obs.RSSI, obs.Distance)
	g.publish(domain.Event{
		Type:      domain.EventTokenDetected,
		GateState: g.State(),
		Detection: &domain.Detection{
			TokenID:   obs.ID,
			TokenName: name,
			RSSI:      obs.RSSI,
			Distance:  obs.Distance,
			Time:      g.now(),
		},
		Time: g.now(),
	})

	g.mu.Lock()
	now := g.now()
	g.seen[obs.ID] = lastSeen{name: name, rssi: obs.RSSI, distance: obs.Distance, at: now}

	if !registered || !token.Enabled {
		g.mu.Unlock()
		return
	}
	if g.state == domain.StateOpen || g.state == domain.StateOpening {
		g.mu.Unlock()
		return
	}
	if g.sessionActiveLocked(now) {
		g.mu.Unlock()
		return
	}

	start := now
	g.sessionStartedAt = &start
	g.state = domain.StateOpening
	g.mu.Unlock()

	if err := g.completeOpen(ctx, fmt.Sprintf("token detected: %s", name), name); err != nil {
		g.logger.Error("gate open failed",
			slog.String("token_id", obs.ID),
			slog.Any("error", err),
		)
	}
}

// RequestOpen opens the gate (manual command path). Failure leaves the state
// Unknown and is surfaced to the caller; no retry is scheduled.
func (g *SessionGate) RequestOpen(ctx context.Context, reason string) error {
	g.mu.Lock()
	g.state = domain.StateOpening
	g.mu.Unlock()
	return g.completeOpen(ctx, reason, "")
}

// RequestClose closes the gate. A successful close clears LastOpenTime but
// intentionally keeps the session: a token still in range must not re-open
// the gate the moment it shuts.
func (g *SessionGate) RequestClose(ctx context.Context, reason string) error {
	g.mu.Lock()
	g.state = domain.StateClosing
	g.mu.Unlock()
	return g.completeClose(ctx, reason)
}

// completeOpen performs the actuator open call and applies the outcome.
// Callers have already set the state to Opening.
func (g *SessionGate) completeOpen(ctx context.Context, reason, tokenName string) error {
	start := time.Now()
	ok := g.actuator.Open(ctx)
	g.recordOperation(ctx, "open", start, ok)

	g.mu.Lock()
	if ok {
		now := g.now()
		g.state = domain.StateOpen
		g.lastOpenTime = &now
	} else {
		g.state = domain.StateUnknown
	}
	g.mu.Unlock()

	if !ok {
		g.recorder.RecordError(fmt.Sprintf("Failed to open gate: %s", reason), nil)
		return domain.ErrOpenFailed
	}

	g.logger.Info("gate opened", slog.String("reason", reason))
	g.recorder.RecordGateOpened(reason, tokenName)
	g.publish(domain.Event{
		Type:      domain.EventGateOpened,
		GateState: domain.StateOpen,
		Reason:    reason,
		Time:      g.now(),
	})
	g.notify(ctx, "Gate opened", reason)
	return nil
}

// completeClose performs the actuator close call and applies the outcome.
// Callers have already set the state to Closing.
func (g *SessionGate) completeClose(ctx context.Context, reason string) error {
	start := time.Now()
	ok := g.actuator.Close(ctx)
	g.recordOperation(ctx, "close", start, ok)

	g.mu.Lock()
	if ok {
		g.state = domain.StateClosed
		g.lastOpenTime = nil
	} else {
		g.state = domain.StateUnknown
	}
	g.mu.Unlock()

	if !ok {
		g.recorder.RecordError(fmt.Sprintf("Failed to close gate: %s", reason), nil)
		return domain.ErrCloseFailed
	}

	g.logger.Info("gate closed", slog.String("reason", reason))
	g.recorder.RecordGateClosed(reason)
	g.publish(domain.Event{
		Type:      domain.EventGateClosed,
		GateState: domain.StateClosed,
		Reason:    reason,
		Time:      g.now(),
	})
	g.notify(ctx, "Gate closed", reason)
	return nil
}

// CheckAutoClose fires a close when the gate has been open for at least the
// auto-close timeout. Token presence is deliberately ignored: an open gate
// times out on elapsed duration alone.
func (g *SessionGate) CheckAutoClose(ctx context.Context) {
	g.mu.Lock()
	if g.state != domain.StateOpen || g.lastOpenTime == nil {
		g.mu.Unlock()
		return
	}
	if g.now().Sub(*g.lastOpenTime) < g.settings().AutoCloseTimeout() {
		g.mu.Unlock()
		return
	}
	g.state = domain.StateClosing
	g.mu.Unlock()

	if err := g.completeClose(ctx, "auto-close timeout"); err != nil {
		g.logger.Error("auto-close failed", slog.Any("error", err))
	}
}

// Status returns the composite snapshot: the locally tracked state alongside
// the actuator's own report. A failed actuator query is reported in the
// snapshot and never mutates the gate state.
func (g *SessionGate) Status(ctx context.Context) domain.Status {
	info, err := g.actuator.Status(ctx)

	g.mu.Lock()
	status := domain.Status{
		GateState:     g.state,
		LastOpenTime:  g.lastOpenTime,
		SessionActive: g.sessionActiveLocked(g.now()),
		Actuator:      info,
	}
	g.mu.Unlock()

	if err != nil {
		status.Actuator.Online = false
		status.ActuatorError = err.Error()
	}
	return status
}

// TokensInRange returns the ids of tokens observed within the idle timeout,
// for annotating registry listings.
func (g *SessionGate) TokensInRange() map[string]time.Time {
	idle := g.settings().TokenIdleTimeout()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make(map[string]time.Time)
	for id, entry := range g.seen {
		if now.Sub(entry.at) <= idle {
			out[id] = entry.at
		}
	}
	return out
}

// notify sends a best-effort push notification; failures are only logged.
func (g *SessionGate) notify(ctx context.Context, title, message string) {
	if !g.actuator.Notify(ctx, title, message) {
		g.logger.Warn("gate notification not delivered", slog.String("title", title))
	}
}

func (g *SessionGate) recordOperation(ctx context.Context, operation string, start time.Time, ok bool) {
	if g.metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	g.metrics.RecordOperation(ctx, "gate", operation, status)
	g.metrics.RecordDuration(ctx, "gate", operation, time.Since(start), status)
}
