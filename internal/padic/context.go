package padic

import (
	"fmt"
	"math/big"
	"sync"

	"padiclattice/internal/config"
	"padiclattice/internal/exact"
	"padiclattice/internal/precision"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default caps, matching the usual lattice-cap and lattice-float domains.
const (
	DefaultRelativeCap = 20
	DefaultAbsoluteCap = 40
)

// Context owns the precision trackers of a computation. Domains created from
// the same Context with the same prime, policy and label share a tracker, so
// their elements may be correlated; different Contexts never interfere.
// Identical labeled requests return the same domain.
type Context struct {
	mu       sync.Mutex
	trackers map[trackerKey]Tracker
	domains  map[domainKey]*Domain
	log      *zap.Logger
	trackLog *zap.Logger
}

type trackerKey struct {
	prime  int64
	policy string
	label  string
}

type domainKey struct {
	trackerKey
	relCap   int
	absCap   int
	zeroCap  int
	internal int
}

// ContextOption configures NewContext.
type ContextOption func(*Context)

// WithTrackerLogger sets the logger trackers report registrations, lifts and
// evictions to. It defaults to the context logger named "tracker".
func WithTrackerLogger(log *zap.Logger) ContextOption {
	return func(c *Context) { c.trackLog = log }
}

// NewContext creates an empty context. A nil logger disables logging.
func NewContext(log *zap.Logger, opts ...ContextOption) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Context{
		trackers: make(map[trackerKey]Tracker),
		domains:  make(map[domainKey]*Domain),
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.trackLog == nil {
		c.trackLog = log.Named("tracker")
	}
	return c
}

// DomainOption configures a domain created by Context.Ring or Context.Field.
type DomainOption func(*domainSettings)

type domainSettings struct {
	policy   Policy
	relCap   int
	absCap   int
	absSet   bool
	zeroCap  int
	internal int
	label    string
	tracker  Tracker
}

// WithPolicy selects the capped or floating declaration policy.
func WithPolicy(p Policy) DomainOption {
	return func(s *domainSettings) { s.policy = p }
}

// WithRelativeCap sets the maximal relative precision.
func WithRelativeCap(n int) DomainOption {
	return func(s *domainSettings) { s.relCap = n }
}

// WithAbsoluteCap sets the maximal absolute precision of a capped domain.
// It defaults to twice the relative cap.
func WithAbsoluteCap(n int) DomainOption {
	return func(s *domainSettings) { s.absCap, s.absSet = n, true }
}

// WithZeroCap enables zero collapse: a sum or difference that cancels at
// least n digits below its operands becomes exactly zero.
func WithZeroCap(n int) DomainOption {
	return func(s *domainSettings) { s.zeroCap = n }
}

// WithInternalPrecision sets the working precision of a floating tracker.
func WithInternalPrecision(n int) DomainOption {
	return func(s *domainSettings) { s.internal = n }
}

// WithLabel scopes the tracker: domains with the same label share it.
func WithLabel(label string) DomainOption {
	return func(s *domainSettings) { s.label = label }
}

// WithTracker uses t instead of a context-managed tracker.
func WithTracker(t Tracker) DomainOption {
	return func(s *domainSettings) { s.tracker = t }
}

// Ring returns Z_p with lattice precision.
func (c *Context) Ring(prime int64, opts ...DomainOption) (*Domain, error) {
	ring, _, err := c.pair(prime, opts)
	return ring, err
}

// Field returns Q_p with lattice precision.
func (c *Context) Field(prime int64, opts ...DomainOption) (*Domain, error) {
	_, field, err := c.pair(prime, opts)
	return field, err
}

// FromConfig builds the domain described by cfg.
func (c *Context) FromConfig(cfg config.DomainConfig) (*Domain, error) {
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	opts := []DomainOption{WithPolicy(policy), WithLabel(cfg.Label)}
	if cfg.RelativeCap > 0 {
		opts = append(opts, WithRelativeCap(cfg.RelativeCap))
	}
	if cfg.AbsoluteCap > 0 {
		opts = append(opts, WithAbsoluteCap(cfg.AbsoluteCap))
	}
	if cfg.ZeroCap > 0 {
		opts = append(opts, WithZeroCap(cfg.ZeroCap))
	}
	if cfg.InternalPrecision > 0 {
		opts = append(opts, WithInternalPrecision(cfg.InternalPrecision))
	}
	if cfg.Field {
		return c.Field(cfg.Prime, opts...)
	}
	return c.Ring(cfg.Prime, opts...)
}

func (c *Context) pair(prime int64, opts []DomainOption) (*Domain, *Domain, error) {
	s := domainSettings{
		policy:  Capped,
		relCap:  DefaultRelativeCap,
		zeroCap: exact.Infinity,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if prime < 2 || !big.NewInt(prime).ProbablyPrime(20) {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidPrime, prime)
	}
	if s.relCap < 1 {
		return nil, nil, fmt.Errorf("%w: relative cap %d must be positive", ErrInvalidCap, s.relCap)
	}
	if s.zeroCap < 1 {
		return nil, nil, fmt.Errorf("%w: zero cap %d must be positive", ErrInvalidCap, s.zeroCap)
	}
	if s.policy.Kind() == precision.Lattice {
		if !s.absSet {
			s.absCap = 2 * s.relCap
		}
		if s.absCap == exact.Infinity {
			return nil, nil, fmt.Errorf("%w: capped domains need a finite absolute cap", ErrInvalidCap)
		}
	} else if !s.absSet {
		s.absCap = exact.Infinity
	}
	if s.internal == 0 {
		s.internal = s.relCap + precision.DefaultAdditionalPrecision
	}
	if s.policy.Kind() == precision.Module && s.internal < s.relCap {
		return nil, nil, fmt.Errorf("%w: internal precision %d is below the relative cap %d",
			ErrInvalidCap, s.internal, s.relCap)
	}
	if s.label == "" {
		s.label = uuid.NewString()
	}
	if s.tracker != nil {
		ring, field := c.newPair(prime, s, s.tracker)
		return ring, field, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := domainKey{
		trackerKey: trackerKey{prime: prime, policy: s.policy.Name(), label: s.label},
		relCap:     s.relCap,
		absCap:     s.absCap,
		zeroCap:    s.zeroCap,
		internal:   s.internal,
	}
	if ring, ok := c.domains[key]; ok {
		return ring, ring.sibling, nil
	}
	ring, field := c.newPair(prime, s, c.tracker(key.trackerKey, s))
	c.domains[key] = ring
	return ring, field, nil
}

func (c *Context) newPair(prime int64, s domainSettings, tracker Tracker) (*Domain, *Domain) {
	ring := &Domain{
		prime:   prime,
		policy:  s.policy,
		relCap:  s.relCap,
		absCap:  s.absCap,
		zeroCap: s.zeroCap,
		label:   s.label,
		tracker: tracker,
	}
	field := *ring
	field.field = true
	field.sibling = ring
	ring.sibling = &field

	c.log.Info("created domain",
		zap.Int64("prime", prime),
		zap.String("policy", s.policy.Name()),
		zap.Int("relative_cap", s.relCap),
		zap.String("label", s.label))
	return ring, &field
}

// tracker returns the tracker for key, creating it on first use.
// The caller holds c.mu.
func (c *Context) tracker(key trackerKey, s domainSettings) Tracker {
	if t, ok := c.trackers[key]; ok {
		return t
	}
	opts := []precision.Option{
		precision.WithLabel(s.label),
		precision.WithLogger(c.trackLog),
	}
	if s.policy.Kind() == precision.Module {
		opts = append(opts, precision.WithInternalPrecision(s.internal))
	}
	t := precision.New(key.prime, s.policy.Kind(), opts...)
	c.trackers[key] = t
	return t
}

// DiffusedDigits returns how many digits of precision es share beyond what
// each of them certifies alone. The elements must live in domains sharing a
// tracker that supports the query.
func DiffusedDigits(es ...*Element) (int, error) {
	if len(es) == 0 {
		return 0, nil
	}
	tr := es[0].dom.tracker
	hs := make([]precision.Handle, len(es))
	for i, e := range es {
		if e.dom.tracker != tr {
			return 0, fmt.Errorf("%w: elements use different trackers", ErrDomainMismatch)
		}
		hs[i] = e.handle
	}
	defer keepAlive(es...)
	q, ok := tr.(interface {
		DiffusedDigits([]precision.Handle) (int, error)
	})
	if !ok {
		return 0, fmt.Errorf("tracker %T does not report diffused digits", tr)
	}
	return q.DiffusedDigits(hs)
}
