package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/httpserver"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/presenter"
	"github.com/ruteri/fhe-identity-auth/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T) *httptest.Server {
	t.Helper()
	account := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	match := true

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, httpserver.SessionResponse{
			Session:    interfaces.Session{Connected: true, Account: account, ChainID: interfaces.HardhatChainID},
			ChainName:  "Hardhat Local",
			Encryption: "ready",
		})
	})
	mux.HandleFunc("POST /api/v1/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, httpserver.WorkflowResponse{
			Snapshot: workflow.Snapshot{Action: interfaces.ActionRegister, Registered: true},
			Error:    &httpserver.ErrorInfo{Kind: interfaces.KindContractStateConflict, Reason: interfaces.ReasonAlreadyRegistered},
			Display:  presenter.Display{Title: "Already registered"},
		})
	})
	mux.HandleFunc("POST /api/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		var req httpserver.IdentityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, httpserver.WorkflowResponse{
			Snapshot: workflow.Snapshot{Action: interfaces.ActionVerify, State: interfaces.StateComplete, VerificationResult: &match},
			Display:  presenter.Display{Title: "Identity matches"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func TestAgentClient_Session(t *testing.T) {
	srv := newTestAgent(t)
	client := NewAgentClient(srv.URL+"/", time.Second)

	resp, err := client.Session(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Session.Connected)
	assert.Equal(t, interfaces.HardhatChainID, resp.Session.ChainID)
	assert.Equal(t, "Hardhat Local", resp.ChainName)
}

func TestAgentClient_Verify(t *testing.T) {
	srv := newTestAgent(t)
	client := NewAgentClient(srv.URL, time.Second)

	resp, err := client.Verify(context.Background(), "12345")
	require.NoError(t, err)
	require.NotNil(t, resp.Snapshot.VerificationResult)
	assert.True(t, *resp.Snapshot.VerificationResult)
	assert.Equal(t, "Identity matches", resp.Display.Title)

	_, err = client.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestAgentClient_ConflictReturnsBody(t *testing.T) {
	srv := newTestAgent(t)
	client := NewAgentClient(srv.URL, time.Second)

	resp, err := client.Register(context.Background(), "12345")
	require.ErrorIs(t, err, ErrConflict)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, interfaces.ReasonAlreadyRegistered, resp.Error.Reason)
	assert.True(t, resp.Snapshot.Registered)
}

func TestAgentClient_Unreachable(t *testing.T) {
	srv := newTestAgent(t)
	addr := srv.URL
	srv.Close()

	_, err := NewAgentClient(addr, time.Second).Status(context.Background())
	require.Error(t, err)
	assert.True(t, interfaces.IsTransportError(err))
}
