package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "rtgssim/pkg/errors"
)

func TestHTTPClientProposePolicySendsBearerTokenAndParsesResponse(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ProposalResponse{ProposedPolicy: "{}", Rationale: "tightened hold threshold"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret-token", "policy-advisor", 5*time.Second)
	resp, err := c.ProposePolicy(context.Background(), ProposalRequest{AgentID: "A", TreeKind: "payment_tree", Seed: 1})

	assert.NoError(t, err)
	assert.Equal(t, "/v1/policy/propose", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "policy-advisor", gotBody["model"])
	assert.Equal(t, "tightened hold threshold", resp.Rationale)
}

func TestHTTPClientReturnsLLMFailureOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "m", time.Second)
	_, err := c.ProposePolicy(context.Background(), ProposalRequest{})

	assert.Error(t, err)
	kind, ok := perrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, perrors.KindLLMFailure, kind)
}

func TestNopClientAlwaysFailsWithLLMFailure(t *testing.T) {
	_, err := (NopClient{}).ProposePolicy(context.Background(), ProposalRequest{})

	assert.Error(t, err)
	kind, ok := perrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, perrors.KindLLMFailure, kind)
}
