package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/capability"
	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/model"
	"agentmesh/internal/store"
	"agentmesh/internal/trust"
)

// Handshake outcomes recorded in the audit log
const (
	OutcomeSuccess           = "success"
	OutcomeFailedSignature   = "failed_signature"
	OutcomeReplayedChallenge = "replayed_challenge"
	OutcomeUnknownChallenge  = "unknown_challenge"
)

func rejected(did string, sc trust.Score, msg string) *HandshakeResult {
	return &HandshakeResult{
		AgentDID:            did,
		TrustScore:          sc.Total(),
		Tier:                string(sc.Tier()),
		CapabilitiesGranted: []string{},
		Error:               msg,
	}
}

// Handshake runs one challenge/response attempt. The returned error is an
// *httpx.AppError; when the DID is known its Data holds the HandshakeResult.
func (s *Service) Handshake(ctx context.Context, req *HandshakeRequest) (*HandshakeResult, error) {
	did := strings.TrimSpace(req.AgentDID)
	challenge := strings.TrimSpace(req.Challenge)
	if did == "" {
		return nil, httpx.ErrMissingField("agent_did is required")
	}
	if challenge == "" {
		return nil, httpx.ErrMissingField("challenge is required")
	}
	if err := checkDID(did); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(did)
	defer unlock()

	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		if appErr := httpx.AsAppError(err); appErr.Code == httpx.CodeNotFound {
			res := &HandshakeResult{
				AgentDID:            did,
				TrustScore:          0,
				Tier:                TierUnknown,
				CapabilitiesGranted: []string{},
				Error:               "agent not found",
			}
			return nil, httpx.ErrNotFound("agent not found").WithData(res)
		}
		return nil, err
	}

	score, err := s.loadScore(ctx, did)
	if err != nil {
		return nil, err
	}

	if agent.Status.Blocked() {
		msg := fmt.Sprintf("agent is %s", agent.Status)
		return nil, httpx.ErrForbidden(msg).WithData(rejected(did, score, msg))
	}

	signed := req.Signature != ""
	if signed {
		outcome, err := s.checkChallenge(ctx, agent, challenge, req.Signature)
		if err != nil {
			return nil, err
		}
		if outcome != OutcomeSuccess {
			return nil, s.failHandshake(ctx, agent, score, outcome)
		}
	}

	// capabilities are gated on the score before this handshake's reward
	granted := capability.Grant(score.Total(), req.CapabilitiesRequested)

	now := s.now()
	after := trust.Apply(score, trust.Event{Type: trust.EventSuccessfulHandshake}, now)

	// Everything that can fail without touching agent state runs before the
	// reward is persisted.
	ts := now.UnixMilli()
	respSig, err := s.serverKey.Sign(fmt.Sprintf("%s:%d:%d", did, after.Total(), ts))
	if err != nil {
		return nil, httpx.ErrInternalError("failed to sign handshake response", err)
	}
	token, expireAt, err := s.sessions.Issue(did, string(after.Tier()), after.Total(), granted)
	if err != nil {
		return nil, httpx.ErrInternalError("failed to issue session token", err)
	}
	next, err := s.issueChallenge(ctx, did)
	if err != nil {
		return nil, err
	}

	if signed {
		if err := s.consumeChallenge(ctx, did, challenge); err != nil {
			return nil, err
		}
	}
	if err := s.saveScore(ctx, did, after); err != nil {
		return nil, err
	}
	s.incr(ctx, StatHandshakes)

	agent.LastActive = &now
	if err := s.saveAgent(ctx, agent); err != nil {
		return nil, err
	}

	if _, err := s.appendAudit(ctx, did, "handshake", OutcomeSuccess, map[string]any{
		"signed":               signed,
		"trust_score_before":   score.Total(),
		"trust_score":          after.Total(),
		"capabilities_granted": granted,
	}); err != nil {
		return nil, err
	}

	res := &HandshakeResult{
		Verified:            true,
		AgentDID:            did,
		TrustScore:          after.Total(),
		Tier:                string(after.Tier()),
		CapabilitiesGranted: granted,
		Signature:           respSig,
		Challenge:           next,
		SessionToken:        token,
		ExpiresIn:           int(s.sessions.TTL() / time.Second),
		ExpiresAt:           &expireAt,
		Timestamp:           ts,
	}

	s.logger.WithFields(logrus.Fields{
		"did":         did,
		"trust_score": after.Total(),
		"granted":     granted,
	}).Info("Handshake verified")
	s.publish(TopicHandshake, did, res.public())
	return res, nil
}

// public strips secrets before a result is broadcast.
func (r *HandshakeResult) public() HandshakeResult {
	c := *r
	c.SessionToken = ""
	c.Challenge = ""
	return c
}

// checkChallenge decides whether a signed challenge is acceptable.
func (s *Service) checkChallenge(ctx context.Context, agent *model.Agent, challenge, signature string) (string, error) {
	used, err := s.store.Exists(ctx, usedChallengeKey(agent.DID, challenge))
	if err != nil {
		return "", storeErr(err)
	}
	if used {
		return OutcomeReplayedChallenge, nil
	}
	if s.opts.RequireIssuedChallenge {
		issued, err := s.store.Exists(ctx, challengeKey(agent.DID, challenge))
		if err != nil {
			return "", storeErr(err)
		}
		if !issued {
			return OutcomeUnknownChallenge, nil
		}
	}
	if !identity.Verify(challenge, signature, agent.PublicKey) {
		return OutcomeFailedSignature, nil
	}
	return OutcomeSuccess, nil
}

// failHandshake records the failed_handshake penalty and builds the error.
func (s *Service) failHandshake(ctx context.Context, agent *model.Agent, score trust.Score, outcome string) error {
	after := trust.Apply(score, trust.Event{Type: trust.EventFailedHandshake}, s.now())
	if err := s.saveScore(ctx, agent.DID, after); err != nil {
		return err
	}
	s.incr(ctx, StatFailedHandshakes)
	if _, err := s.appendAudit(ctx, agent.DID, "handshake", outcome, map[string]any{
		"trust_score_before": score.Total(),
		"trust_score":        after.Total(),
	}); err != nil {
		return err
	}

	msg := "signature verification failed"
	switch outcome {
	case OutcomeReplayedChallenge:
		msg = "challenge already used"
	case OutcomeUnknownChallenge:
		msg = "challenge was not issued by this registry"
	}

	s.logger.WithFields(logrus.Fields{
		"did":         agent.DID,
		"outcome":     outcome,
		"trust_score": after.Total(),
	}).Warn("Handshake rejected")
	res := rejected(agent.DID, after, msg)
	s.publish(TopicHandshake, agent.DID, *res)
	return httpx.ErrUnauthorized(msg).WithData(res)
}

func (s *Service) consumeChallenge(ctx context.Context, did, challenge string) error {
	if _, err := s.store.Take(ctx, challengeKey(did, challenge)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}
	if err := store.SetJSON(ctx, s.store, usedChallengeKey(did, challenge), s.now().UTC(), s.opts.UsedChallengeTTL); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *Service) issueChallenge(ctx context.Context, did string) (string, error) {
	c := identity.GenerateChallenge()
	if err := store.SetJSON(ctx, s.store, challengeKey(did, c), s.now().UTC(), s.opts.ChallengeTTL); err != nil {
		return "", storeErr(err)
	}
	return c, nil
}

// IssueChallenge hands out a fresh nonce for the agent's next handshake.
func (s *Service) IssueChallenge(ctx context.Context, did string) (*ChallengeResponse, error) {
	did = strings.TrimSpace(did)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		return nil, err
	}
	if agent.Status.Blocked() {
		return nil, httpx.ErrForbidden(fmt.Sprintf("agent is %s", agent.Status))
	}
	c, err := s.issueChallenge(ctx, did)
	if err != nil {
		return nil, err
	}
	return &ChallengeResponse{
		AgentDID:  did,
		Challenge: c,
		ExpiresIn: int(s.opts.ChallengeTTL / time.Second),
	}, nil
}
