package registry

import (
	"context"
	"strings"

	"agentmesh/internal/httpx"
	"agentmesh/internal/model"
	"agentmesh/internal/store"
	"agentmesh/internal/trust"
)

// MaskEmail keeps the first two characters of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	if at < 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

// Lookup returns the public registration record of did.
func (s *Service) Lookup(ctx context.Context, did string) (*VerifyResponse, error) {
	did = strings.TrimSpace(did)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		if appErr := httpx.AsAppError(err); appErr.Code == httpx.CodeNotFound {
			return nil, appErr.WithData(map[string]any{"registered": false})
		}
		return nil, err
	}
	return s.verifyView(ctx, agent)
}

func (s *Service) verifyView(ctx context.Context, agent *model.Agent) (*VerifyResponse, error) {
	score, err := s.loadScore(ctx, agent.DID)
	if err != nil {
		return nil, err
	}
	return &VerifyResponse{
		Registered:   true,
		DID:          agent.DID,
		Name:         agent.Name,
		Description:  agent.Description,
		Sponsor:      MaskEmail(agent.SponsorEmail),
		Status:       string(agent.Status),
		TrustScore:   score.Total(),
		Tier:         string(score.Tier()),
		Capabilities: agent.Capabilities,
		PublicKey:    agent.PublicKey,
		CreatedAt:    agent.CreatedAt,
		LastActive:   agent.LastActive,
	}, nil
}

// Score returns the agent's trust score with advice for weak dimensions.
func (s *Service) Score(ctx context.Context, did string) (*ScoreResponse, error) {
	did = strings.TrimSpace(did)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		return nil, err
	}
	score, err := s.loadScore(ctx, did)
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{
		AgentDID:        did,
		Name:            agent.Name,
		Total:           score.Total(),
		Tier:            string(score.Tier()),
		Formatted:       trust.Format(score),
		Dimensions:      score.Dimensions(),
		LastUpdated:     score.LastUpdated(),
		Recommendations: trust.Recommendations(score),
	}, nil
}

// Audit returns the last AuditWindow entries. With verify set the whole
// chain is recomputed against the stored tip.
func (s *Service) Audit(ctx context.Context, did string, verify bool) (*AuditResponse, error) {
	did = strings.TrimSpace(did)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		return nil, err
	}
	w, err := s.audit.Read(ctx, did, AuditWindow)
	if err != nil {
		return nil, storeErr(err)
	}

	resp := &AuditResponse{
		AgentDID:   did,
		Name:       agent.Name,
		EntryCount: w.Total,
		Entries:    w.Entries,
		Complete:   w.Complete,
	}
	if w.Tip != "" {
		tip := w.Tip
		resp.MerkleRoot = &tip
	}
	if verify {
		ok, err := s.audit.Verify(ctx, did)
		if err != nil {
			return nil, storeErr(err)
		}
		resp.ChainValid = &ok
		if !ok {
			s.logger.WithField("did", did).Error("Audit chain does not match stored tip")
		}
	}
	return resp, nil
}

// Stats reads the global counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error
	if st.RegisteredAgents, err = store.GetCounter(ctx, s.store, statKey(StatRegisteredAgents)); err != nil {
		return nil, storeErr(err)
	}
	if st.Handshakes, err = store.GetCounter(ctx, s.store, statKey(StatHandshakes)); err != nil {
		return nil, storeErr(err)
	}
	if st.FailedHandshakes, err = store.GetCounter(ctx, s.store, statKey(StatFailedHandshakes)); err != nil {
		return nil, storeErr(err)
	}
	return &st, nil
}
