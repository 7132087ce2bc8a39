// Package registry is the AgentMesh authority: it owns agent records, trust
// scores and audit chains, and runs the handshake protocol over them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"agentmesh/internal/audit"
	"agentmesh/internal/auth"
	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/keylock"
	"agentmesh/internal/model"
	"agentmesh/internal/store"
	"agentmesh/internal/trust"
)

// Counter names under stats:
const (
	StatRegisteredAgents = "registered_agents"
	StatHandshakes       = "handshakes"
	StatFailedHandshakes = "failed_handshakes"
)

// AuditWindow is how many entries an audit query returns.
const AuditWindow = 50

// MaxNameLen bounds sanitized agent names.
const MaxNameLen = 32

func agentKey(did string) string { return "agent:" + did }
func scoreKey(did string) string { return "score:" + did }
func apiKeyKey(key string) string { return "apikey:" + identity.SHA256Hex(key) }
func publicKeyKey(pub string) string { return "pubkey:" + pub }
func statKey(name string) string { return "stats:" + name }
func challengeKey(did, c string) string {
	return "challenge:" + did + ":" + identity.SHA256Hex(c)
}
func usedChallengeKey(did, c string) string {
	return "challenge-used:" + did + ":" + identity.SHA256Hex(c)
}

// Options tunes the protocol.
type Options struct {
	// ReplayMaxAge bounds signed envelopes (key rotation).
	ReplayMaxAge time.Duration
	// ChallengeTTL is how long an issued challenge stays redeemable.
	ChallengeTTL time.Duration
	// UsedChallengeTTL is how long a consumed challenge is remembered.
	UsedChallengeTTL time.Duration
	// RequireIssuedChallenge rejects signed handshakes over challenges the
	// registry did not issue.
	RequireIssuedChallenge bool
	AgentCacheSize         int
}

func (o *Options) withDefaults() {
	if o.ReplayMaxAge <= 0 {
		o.ReplayMaxAge = identity.DefaultMaxAge
	}
	if o.ChallengeTTL <= 0 {
		o.ChallengeTTL = time.Hour
	}
	if o.UsedChallengeTTL <= 0 {
		o.UsedChallengeTTL = 24 * time.Hour
	}
	if o.AgentCacheSize <= 0 {
		o.AgentCacheSize = 1024
	}
}

// Config wires a Service.
type Config struct {
	Store     store.Store
	Audit     *audit.Log
	Sessions  *auth.SessionIssuer
	ServerKey *identity.KeyPair
	Publisher Publisher
	Logger    *logrus.Entry
	Options   Options
}

// Service implements every registry operation. Mutations of one agent's
// score and audit chain run under a single per-DID lock shared with the
// audit log.
type Service struct {
	store     store.Store
	audit     *audit.Log
	sessions  *auth.SessionIssuer
	serverKey *identity.KeyPair
	publisher Publisher
	logger    *logrus.Entry
	opts      Options
	locks     *keylock.Map
	agents    *lru.Cache
	now       func() time.Time
}

// NewService creates a registry service
func NewService(cfg *Config) (*Service, error) {
	if cfg.Store == nil || cfg.Audit == nil || cfg.Sessions == nil || cfg.ServerKey == nil {
		return nil, errors.New("registry: store, audit, sessions and server key are required")
	}
	opts := cfg.Options
	opts.withDefaults()

	cache, err := lru.New(opts.AgentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("registry: agent cache: %w", err)
	}

	pub := cfg.Publisher
	if pub == nil {
		pub = NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Service{
		store:     cfg.Store,
		audit:     cfg.Audit,
		sessions:  cfg.Sessions,
		serverKey: cfg.ServerKey,
		publisher: pub,
		logger:    logger.WithField("component", "registry"),
		opts:      opts,
		locks:     cfg.Audit.Locks(),
		agents:    cache,
		now:       time.Now,
	}, nil
}

// PublicKey is the registry's hex Ed25519 key used for handshake signatures.
func (s *Service) PublicKey() string { return s.serverKey.PublicKey }

func storeErr(err error) *httpx.AppError {
	return httpx.ErrStoreError("", err)
}

func checkDID(did string) error {
	if did == "" {
		return httpx.ErrMissingField("agent_did is required")
	}
	if !identity.ValidDID(did) {
		return httpx.ErrInvalidDIDFormat("")
	}
	return nil
}

// loadAgent returns a private copy of the agent record.
func (s *Service) loadAgent(ctx context.Context, did string) (*model.Agent, error) {
	if v, ok := s.agents.Get(did); ok {
		return v.(*model.Agent).Clone(), nil
	}
	var a model.Agent
	err := store.GetJSON(ctx, s.store, agentKey(did), &a)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httpx.ErrNotFound("agent not found")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	s.agents.Add(did, a.Clone())
	return &a, nil
}

func (s *Service) saveAgent(ctx context.Context, a *model.Agent) error {
	if err := store.SetJSON(ctx, s.store, agentKey(a.DID), a, 0); err != nil {
		s.agents.Remove(a.DID)
		return storeErr(err)
	}
	s.agents.Add(a.DID, a.Clone())
	return nil
}

func (s *Service) loadScore(ctx context.Context, did string) (trust.Score, error) {
	var sc trust.Score
	if err := store.GetJSON(ctx, s.store, scoreKey(did), &sc); err != nil {
		return trust.Score{}, storeErr(fmt.Errorf("load score %s: %w", did, err))
	}
	return sc, nil
}

func (s *Service) saveScore(ctx context.Context, did string, sc trust.Score) error {
	if err := store.SetJSON(ctx, s.store, scoreKey(did), sc, 0); err != nil {
		return storeErr(err)
	}
	return nil
}

// appendAudit records an entry; failures are surfaced as store errors. The
// caller holds s.locks.Lock(did), which is the audit log's own lock.
func (s *Service) appendAudit(ctx context.Context, did, eventType, outcome string, data map[string]any) (*audit.Entry, error) {
	e, err := s.audit.AppendLocked(ctx, audit.Entry{
		AgentDID:  did,
		EventType: eventType,
		Outcome:   outcome,
		Timestamp: s.now(),
		Data:      data,
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.publish(TopicAudit, did, e)
	return e, nil
}

// incr bumps a global counter; a failure is logged, never fatal.
func (s *Service) incr(ctx context.Context, name string) {
	if _, err := s.store.Incr(ctx, statKey(name)); err != nil {
		s.logger.WithError(err).WithField("counter", name).Warn("Failed to increment counter")
	}
}

func (s *Service) publish(topic, did string, payload any) {
	s.publisher.Publish(Event{
		Topic:     topic,
		AgentDID:  did,
		Payload:   payload,
		Timestamp: s.now().UTC(),
	})
}
