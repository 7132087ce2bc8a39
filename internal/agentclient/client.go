package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/registry"
)

// ErrBadRegistrySignature means a handshake response was not signed by the
// expected registry key.
var ErrBadRegistrySignature = errors.New("registry signature verification failed")

// Client talks to an AgentMesh registry over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the X-API-Key used by self-service calls
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a registry client; baseURL is e.g. http://host:8080
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 300 || env.Code != httpx.CodeSuccess {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message, Data: env.Data}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Register creates a new agent identity
func (c *Client) Register(ctx context.Context, req *registry.RegisterRequest) (*registry.RegisterResponse, error) {
	var resp registry.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify fetches the public record of did
func (c *Client) Verify(ctx context.Context, did string) (*registry.VerifyResponse, error) {
	var resp registry.VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/verify/"+url.PathEscape(did), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Challenge asks the registry for a fresh nonce
func (c *Client) Challenge(ctx context.Context, did string) (*registry.ChallengeResponse, error) {
	var resp registry.ChallengeResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/challenge?did="+url.QueryEscape(did), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Handshake submits one handshake attempt. On a rejected handshake the
// returned *APIError carries the result in Data; HandshakeResultOf decodes it.
func (c *Client) Handshake(ctx context.Context, req *registry.HandshakeRequest) (*registry.HandshakeResult, error) {
	var resp registry.HandshakeResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/handshake", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HandshakeResultOf extracts the handshake result attached to a rejection
func HandshakeResultOf(err error) (*registry.HandshakeResult, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.Data) == 0 || string(apiErr.Data) == "null" {
		return nil, false
	}
	var res registry.HandshakeResult
	if json.Unmarshal(apiErr.Data, &res) != nil {
		return nil, false
	}
	return &res, true
}

// Authenticate fetches a challenge, signs it with kp and runs the handshake.
// When registryKey is set the registry's response signature is checked too.
func (c *Client) Authenticate(ctx context.Context, did string, kp *identity.KeyPair, capabilities []string, registryKey string) (*registry.HandshakeResult, error) {
	ch, err := c.Challenge(ctx, did)
	if err != nil {
		return nil, err
	}
	sig, err := kp.Sign(ch.Challenge)
	if err != nil {
		return nil, err
	}
	res, err := c.Handshake(ctx, &registry.HandshakeRequest{
		AgentDID:              did,
		Challenge:             ch.Challenge,
		Signature:             sig,
		CapabilitiesRequested: capabilities,
	})
	if err != nil {
		return nil, err
	}
	if registryKey != "" && !VerifyHandshake(res, registryKey) {
		return nil, ErrBadRegistrySignature
	}
	return res, nil
}

// VerifyHandshake checks the registry signature over "<did>:<score>:<timestamp>"
func VerifyHandshake(res *registry.HandshakeResult, registryKey string) bool {
	payload := fmt.Sprintf("%s:%d:%d", res.AgentDID, res.TrustScore, res.Timestamp)
	return identity.Verify(payload, res.Signature, registryKey)
}

// Score fetches the trust score breakdown
func (c *Client) Score(ctx context.Context, did string) (*registry.ScoreResponse, error) {
	var resp registry.ScoreResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/score/"+url.PathEscape(did), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Audit fetches the newest audit entries, optionally with chain verification
func (c *Client) Audit(ctx context.Context, did string, verify bool) (*registry.AuditResponse, error) {
	path := "/api/v1/audit/" + url.PathEscape(did)
	if verify {
		path += "?verify=1"
	}
	var resp registry.AuditResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the record of the agent owning the API key
func (c *Client) Me(ctx context.Context) (*registry.VerifyResponse, error) {
	var resp registry.VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RotateKey binds next as the agent's new key. Requires WithAPIKey.
func (c *Client) RotateKey(ctx context.Context, did string, next *identity.KeyPair) (*registry.VerifyResponse, error) {
	msg, err := identity.CreateSignedMessage(registry.RotationPayload(did, next.PublicKey), next.PrivateKey, next.PublicKey, time.Now())
	if err != nil {
		return nil, err
	}
	var resp registry.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/agents/me/public-key", msg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
