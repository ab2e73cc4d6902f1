// Package llm defines the LLM client contract the optimization loop uses
// to propose candidate policy changes, and an HTTP implementation
// authenticated with a bearer token, the same transport/auth shape used
// elsewhere in this codebase for calling an internal service over plain
// HTTP rather than a heavier RPC framework.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	perrors "rtgssim/pkg/errors"
)

// ProposalRequest is what the optimizer sends the LLM: the agent under
// tuning, its current policy source, and recent performance diagnostics to
// condition the suggestion on.
type ProposalRequest struct {
	AgentID        string                 `json:"agent_id"`
	TreeKind       string                 `json:"tree_kind"`
	CurrentPolicy  string                 `json:"current_policy"`
	RecentMetrics  map[string]float64     `json:"recent_metrics"`
	Seed           uint64                 `json:"seed"`
}

// ProposalResponse is the LLM's suggested replacement policy, as DSL
// source text the caller must still parse and validate before use: the
// client contract never trusts the model's syntax.
type ProposalResponse struct {
	ProposedPolicy string `json:"proposed_policy"`
	Rationale      string `json:"rationale"`
}

// Client is the narrow interface internal/optimize depends on.
type Client interface {
	ProposePolicy(ctx context.Context, req ProposalRequest) (*ProposalResponse, error)
}

// HTTPClient is a Client backed by a bearer-token-authenticated HTTP API.
// The bearer token is carried by an oauth2.StaticTokenSource rather than a
// hand-rolled header setter, so the same transport refreshes/reuses the
// token the way it would for any OAuth2-style service credential.
type HTTPClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient whose every request is transparently
// authenticated with token via oauth2's client transport.
func NewHTTPClient(baseURL, token, model string, timeout time.Duration) *HTTPClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = timeout
	return &HTTPClient{
		baseURL: baseURL,
		model:   model,
		http:    httpClient,
	}
}

// ProposePolicy calls the configured endpoint, returning a KindLLMFailure
// error (recoverable per the error taxonomy) on any transport, auth, or
// decode failure.
func (c *HTTPClient) ProposePolicy(ctx context.Context, req ProposalRequest) (*ProposalResponse, error) {
	body, err := json.Marshal(struct {
		ProposalRequest
		Model string `json:"model"`
	}{req, c.model})
	if err != nil {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, "encoding proposal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/policy/propose", bytes.NewReader(body))
	if err != nil {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, "building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, "calling LLM endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, fmt.Sprintf("llm endpoint returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, "reading response body", err)
	}
	var out ProposalResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, perrors.NewKinded(perrors.KindLLMFailure, "decoding response body", err)
	}
	return &out, nil
}

// NopClient always fails, for runs configured without an LLM endpoint; the
// optimization loop records each such iteration as a rejected proposal and
// moves on.
type NopClient struct{}

func (NopClient) ProposePolicy(ctx context.Context, req ProposalRequest) (*ProposalResponse, error) {
	return nil, perrors.NewKinded(perrors.KindLLMFailure, "no LLM client configured", nil)
}
