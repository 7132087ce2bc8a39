package registry

import (
	"context"
	"errors"
	"strings"

	"agentmesh/internal/capability"
	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/model"
	"agentmesh/internal/store"
	"agentmesh/internal/trust"
)

// SanitizeName keeps [A-Za-z0-9_-] and truncates to MaxNameLen.
func SanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < MaxNameLen; i++ {
		ch := name[i]
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_' || ch == '-' {
			out = append(out, ch)
		}
	}
	return string(out)
}

func normalizeCapabilities(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		out = append(out, capability.Basic)
	}
	return out
}

// Register creates a new agent with the fixed initial trust score. The API
// key is returned once; only its hash is kept.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.SponsorEmail)
	pub := strings.ToLower(strings.TrimSpace(req.PublicKey))

	if name == "" {
		return nil, httpx.ErrMissingField("name is required")
	}
	name = SanitizeName(name)
	if len(name) < 2 {
		return nil, httpx.ErrInvalidField("name must be at least 2 alphanumeric characters")
	}
	if email == "" {
		return nil, httpx.ErrMissingField("sponsor_email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, httpx.ErrInvalidField("sponsor_email must be an email address")
	}
	if pub == "" {
		return nil, httpx.ErrMissingField("public_key is required")
	}
	if !identity.ValidPublicKey(pub) {
		return nil, httpx.ErrInvalidField("public_key must be a 64-hex Ed25519 public key")
	}

	// one agent per key, so a signature names exactly one identity
	unlock := s.locks.Lock(publicKeyKey(pub))
	defer unlock()
	taken, err := s.store.Exists(ctx, publicKeyKey(pub))
	if err != nil {
		return nil, storeErr(err)
	}
	if taken {
		return nil, httpx.ErrAlreadyExists("public_key is already registered")
	}

	did, err := s.newDID(ctx)
	if err != nil {
		return nil, err
	}
	apiKey := identity.GenerateAPIKey()
	now := s.now().UTC()

	agent := &model.Agent{
		DID:          did,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		SponsorEmail: email,
		PublicKey:    pub,
		APIKeyHash:   identity.SHA256Hex(apiKey),
		Capabilities: normalizeCapabilities(req.Capabilities),
		Status:       model.AgentStatusPending,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	score := trust.NewInitialScore(now)

	unlockDID := s.locks.Lock(did)
	defer unlockDID()

	if err := s.saveAgent(ctx, agent); err != nil {
		return nil, err
	}
	if err := s.saveScore(ctx, did, score); err != nil {
		return nil, err
	}
	if err := store.SetJSON(ctx, s.store, apiKeyKey(apiKey), did, 0); err != nil {
		return nil, storeErr(err)
	}
	if err := store.SetJSON(ctx, s.store, publicKeyKey(pub), did, 0); err != nil {
		return nil, storeErr(err)
	}
	if _, err := s.appendAudit(ctx, did, "registration", "success", map[string]any{
		"name":         name,
		"capabilities": agent.Capabilities,
		"trust_score":  score.Total(),
	}); err != nil {
		return nil, err
	}
	s.incr(ctx, StatRegisteredAgents)

	challenge, err := s.issueChallenge(ctx, did)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("did", did).Info("Agent registered")
	s.publish(TopicAgentRegistered, did, map[string]any{
		"name":        name,
		"trust_score": score.Total(),
		"tier":        score.Tier(),
	})

	return &RegisterResponse{
		AgentDID:          did,
		APIKey:            apiKey,
		Status:            string(agent.Status),
		TrustScore:        score.Total(),
		Tier:              string(score.Tier()),
		Capabilities:      agent.Capabilities,
		Challenge:         challenge,
		RegistryPublicKey: s.serverKey.PublicKey,
		CreatedAt:         now,
	}, nil
}

func (s *Service) newDID(ctx context.Context) (string, error) {
	for i := 0; i < 3; i++ {
		did := identity.GenerateDID()
		_, err := s.store.Get(ctx, agentKey(did))
		if errors.Is(err, store.ErrNotFound) {
			return did, nil
		}
		if err != nil {
			return "", storeErr(err)
		}
	}
	return "", httpx.ErrInternalError("could not allocate a DID", nil)
}
