package registry

import (
	"context"
	"errors"
	"strings"

	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/model"
	"agentmesh/internal/store"
)

// AuthenticateAPIKey resolves an agent from its API key.
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (*model.Agent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, httpx.ErrUnauthorized("API key required")
	}
	if !strings.HasPrefix(key, identity.APIKeyPrefix) {
		return nil, httpx.ErrInvalidToken("malformed API key")
	}

	var did string
	err := store.GetJSON(ctx, s.store, apiKeyKey(key), &did)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httpx.ErrInvalidToken("unknown API key")
	}
	if err != nil {
		return nil, storeErr(err)
	}

	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		return nil, err
	}
	if agent.APIKeyHash != identity.SHA256Hex(key) {
		return nil, httpx.ErrInvalidToken("unknown API key")
	}
	return agent, nil
}

// RotationPayload is what the new key must sign: "<did>:<new public key>".
func RotationPayload(did, publicKey string) string {
	return did + ":" + publicKey
}

// RotatePublicKey binds a new public key to did. msg must be a fresh envelope
// signed by the new key over RotationPayload.
func (s *Service) RotatePublicKey(ctx context.Context, did string, msg *identity.SignedMessage) (*VerifyResponse, error) {
	if msg == nil || msg.PublicKey == "" || msg.Signature == "" || msg.Timestamp == "" {
		return nil, httpx.ErrMissingField("signed message with public_key, signature and timestamp is required")
	}
	pub := strings.ToLower(msg.PublicKey)
	if !identity.ValidPublicKey(pub) {
		return nil, httpx.ErrInvalidField("public_key must be a 64-hex Ed25519 public key")
	}
	if msg.Data != RotationPayload(did, msg.PublicKey) {
		return nil, httpx.ErrInvalidField("signed data must be <did>:<public_key>")
	}
	if !identity.VerifySignedMessage(msg, s.opts.ReplayMaxAge, s.now()) {
		return nil, httpx.ErrUnauthorized("signed message is invalid or expired")
	}

	unlock := s.locks.Lock(did)
	defer unlock()

	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		return nil, err
	}
	if agent.Status.Blocked() {
		return nil, httpx.ErrForbidden("agent is " + string(agent.Status))
	}
	if agent.PublicKey == pub {
		return nil, httpx.ErrAlreadyExists("public_key is already bound to this agent")
	}

	unlockKey := s.locks.Lock(publicKeyKey(pub))
	defer unlockKey()
	taken, err := s.store.Exists(ctx, publicKeyKey(pub))
	if err != nil {
		return nil, storeErr(err)
	}
	if taken {
		return nil, httpx.ErrAlreadyExists("public_key is already registered")
	}

	old := agent.PublicKey
	agent.PublicKey = pub
	agent.UpdatedAt = s.now().UTC()
	if err := s.saveAgent(ctx, agent); err != nil {
		return nil, err
	}
	if err := store.SetJSON(ctx, s.store, publicKeyKey(pub), did, 0); err != nil {
		return nil, storeErr(err)
	}
	if err := s.store.Delete(ctx, publicKeyKey(old)); err != nil {
		return nil, storeErr(err)
	}
	if _, err := s.appendAudit(ctx, did, "key_rotation", "success", map[string]any{
		"old_public_key": old,
		"new_public_key": pub,
	}); err != nil {
		return nil, err
	}

	s.logger.WithField("did", did).Info("Agent public key rotated")
	s.publish(TopicKeyRotated, did, map[string]any{"public_key": pub})

	return s.verifyView(ctx, agent)
}
