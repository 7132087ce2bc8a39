package registry

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/httpx"
	"agentmesh/internal/model"
	"agentmesh/internal/trust"
)

// RecordEvent feeds an externally observed event through the update engine.
func (s *Service) RecordEvent(ctx context.Context, req *EventRequest) (*EventResult, error) {
	did := strings.TrimSpace(req.AgentDID)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, httpx.ErrMissingField("type is required")
	}
	typ, err := trust.ParseEventType(req.Type)
	if err != nil {
		return nil, httpx.ErrInvalidField(err.Error())
	}
	sev, err := trust.ParseSeverity(req.Severity)
	if err != nil {
		return nil, httpx.ErrInvalidField(err.Error())
	}
	ev := trust.Event{Type: typ, Severity: sev}

	unlock := s.locks.Lock(did)
	defer unlock()

	if _, err := s.loadAgent(ctx, did); err != nil {
		return nil, err
	}
	before, err := s.loadScore(ctx, did)
	if err != nil {
		return nil, err
	}
	after := trust.Apply(before, ev, s.now())
	if err := s.saveScore(ctx, did, after); err != nil {
		return nil, err
	}

	data := map[string]any{
		"type":               string(typ),
		"severity":           string(sev),
		"trust_score_before": before.Total(),
		"trust_score":        after.Total(),
	}
	if req.Details != "" {
		data["details"] = req.Details
	}
	if _, err := s.appendAudit(ctx, did, "trust_event", string(typ), data); err != nil {
		return nil, err
	}

	res := &EventResult{AgentDID: did, Event: ev, Before: before, After: after}
	s.logger.WithFields(logrus.Fields{
		"did":   did,
		"event": typ,
		"from":  before.Total(),
		"to":    after.Total(),
	}).Info("Trust event recorded")
	s.publish(TopicTrustUpdated, did, res)
	return res, nil
}

// SetStatus moves an agent through its lifecycle. Score and audit history
// are kept whatever the status.
func (s *Service) SetStatus(ctx context.Context, req *StatusRequest) (*VerifyResponse, error) {
	did := strings.TrimSpace(req.AgentDID)
	if err := checkDID(did); err != nil {
		return nil, err
	}
	if req.Status == "" {
		return nil, httpx.ErrMissingField("status is required")
	}
	status, ok := model.ParseAgentStatus(req.Status)
	if !ok {
		return nil, httpx.ErrInvalidField("status must be one of pending, active, suspended, revoked")
	}

	unlock := s.locks.Lock(did)
	agent, err := s.loadAgent(ctx, did)
	if err != nil {
		unlock()
		return nil, err
	}
	from := agent.Status
	if from == model.AgentStatusRevoked && status != model.AgentStatusRevoked {
		unlock()
		return nil, httpx.ErrForbidden("revoked agents cannot be reinstated")
	}

	agent.Status = status
	agent.StatusReason = req.Reason
	agent.UpdatedAt = s.now().UTC()
	if err := s.saveAgent(ctx, agent); err != nil {
		unlock()
		return nil, err
	}
	_, err = s.appendAudit(ctx, did, "status_change", string(status), map[string]any{
		"from":   string(from),
		"to":     string(status),
		"reason": req.Reason,
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"did": did, "from": from, "to": status}).Info("Agent status changed")
	s.publish(TopicStatusChanged, did, map[string]any{"from": from, "to": status, "reason": req.Reason})
	return s.Lookup(ctx, did)
}
