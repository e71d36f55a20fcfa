package session

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/quizrelay/internal/metrics"
)

var (
	// ErrPinSpaceExhausted is returned when no unused pin was found.
	ErrPinSpaceExhausted = errors.New("no free session pin available")
)

// maxPinAttempts bounds the collision retry loop in CreateSession.
const maxPinAttempts = 64

// Registry owns all live sessions, keyed by pin.
type Registry struct {
	sessions sync.Map // pin -> *Session
	count    atomic.Int64

	newPin  PinGenerator
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithPinGenerator replaces the crypto/rand pin source.
func WithPinGenerator(gen PinGenerator) Option {
	return func(r *Registry) {
		r.newPin = gen
	}
}

// WithMetrics records session lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty session registry
func NewRegistry(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		newPin: RandomPin,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession allocates a pin not held by any live session and stores an
// empty session under it.
func (r *Registry) CreateSession() (string, error) {
	for attempt := 0; attempt < maxPinAttempts; attempt++ {
		pin, err := r.newPin()
		if err != nil {
			return "", err
		}

		sess := newSession(pin, r.now())
		if _, loaded := r.sessions.LoadOrStore(pin, sess); loaded {
			continue
		}

		r.count.Add(1)
		r.metrics.SessionCreated()
		r.logger.Debug().Str("pin", pin).Int("attempts", attempt+1).Msg("Session created")
		return pin, nil
	}

	return "", ErrPinSpaceExhausted
}

// GetSession looks up a live session by pin.
func (r *Registry) GetSession(pin string) (*Session, bool) {
	v, ok := r.sessions.Load(pin)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// TrySetHost assigns connID as host of pin iff no host is set. It returns
// true when this call made the assignment or connID already is the host.
func (r *Registry) TrySetHost(pin, connID string) bool {
	if connID == "" {
		return false
	}
	sess, ok := r.GetSession(pin)
	if !ok {
		return false
	}

	isHost, assigned := sess.claimHost(connID)
	if assigned {
		r.metrics.HostAssigned()
		r.logger.Debug().Str("pin", pin).Str("connectionId", connID).Msg("Host assigned")
	}
	return isHost
}

// AddParticipant enrolls connID as a player of pin unless it is the host.
// It reports whether connID is a player after the call.
func (r *Registry) AddParticipant(pin, connID string) bool {
	if connID == "" {
		return false
	}
	sess, ok := r.GetSession(pin)
	if !ok {
		return false
	}
	return sess.enroll(connID)
}

// RemoveParticipant removes connID from the first session in which it holds
// a role and deletes that session when it is left empty. It returns the pin
// of the affected session.
func (r *Registry) RemoveParticipant(connID string) (string, bool) {
	if connID == "" {
		return "", false
	}

	var (
		pin   string
		found bool
	)
	r.sessions.Range(func(_, value any) bool {
		sess := value.(*Session)
		held, empty := sess.release(connID)
		if !held {
			return true
		}

		pin, found = sess.Pin, true
		if empty && r.sessions.CompareAndDelete(sess.Pin, sess) {
			r.count.Add(-1)
			r.metrics.SessionRemoved()
			r.logger.Debug().Str("pin", sess.Pin).Msg("Session removed")
		}
		return false
	})

	return pin, found
}

// Sender resolves the role of connID in pin with a single lookup.
func (r *Registry) Sender(pin, connID string) (Sender, bool) {
	sess, ok := r.GetSession(pin)
	if !ok {
		return Sender{}, false
	}
	return sess.resolve(connID)
}

// List returns snapshots of all live sessions, oldest first.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, r.Count())
	r.sessions.Range(func(_, value any) bool {
		infos = append(infos, value.(*Session).Info())
		return true
	})

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Pin < infos[j].Pin
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return int(r.count.Load())
}
