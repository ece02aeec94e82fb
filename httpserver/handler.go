package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
	"github.com/ruteri/fhe-identity-auth/presenter"
	"github.com/ruteri/fhe-identity-auth/workflow"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// SessionSource yields the wallet session served by the agent together with
// its signer. A nil signer means the wallet is connected read-only.
type SessionSource interface {
	Session(ctx context.Context) (interfaces.Session, interfaces.Signer, error)
}

// StaticSession serves a fixed signer on a fixed network. A nil Signer is a
// disconnected wallet.
type StaticSession struct {
	Signer  interfaces.Signer
	ChainID interfaces.ChainID
}

func (s StaticSession) Session(context.Context) (interfaces.Session, interfaces.Signer, error) {
	if s.Signer == nil {
		return interfaces.Session{ChainID: s.ChainID}, nil, nil
	}
	return interfaces.Session{Connected: true, Account: s.Signer.Address(), ChainID: s.ChainID}, s.Signer, nil
}

// IdentityRequest is the body of the register and verify endpoints.
type IdentityRequest struct {
	Identity string `json:"identity"`
}

// ErrorInfo is the machine-readable part of a workflow failure.
type ErrorInfo struct {
	Kind    interfaces.ErrorKind `json:"kind"`
	Reason  interfaces.Reason    `json:"reason,omitempty"`
	Message string               `json:"message"`
}

type SessionResponse struct {
	Session           interfaces.Session    `json:"session"`
	ChainName         string                `json:"chainName"`
	Contract          *common.Address       `json:"contract,omitempty"`
	SupportedNetworks []networks.Deployment `json:"supportedNetworks"`
	Unavailable       *presenter.Display    `json:"unavailable,omitempty"`
	Encryption        string                `json:"encryption"`
}

type StatusResponse struct {
	Report  interfaces.StatusReport `json:"report"`
	Display presenter.Display       `json:"display"`
}

type WorkflowResponse struct {
	Snapshot workflow.Snapshot `json:"snapshot"`
	Error    *ErrorInfo        `json:"error,omitempty"`
	Display  presenter.Display `json:"display"`
}

// Handler serves the identity agent API for a single wallet session.
type Handler struct {
	controller *workflow.Controller
	resolver   *networks.Resolver
	encryption interfaces.EncryptionProvider
	sessions   SessionSource
	log        *slog.Logger
}

func NewHandler(controller *workflow.Controller, resolver *networks.Resolver, encryption interfaces.EncryptionProvider, sessions SessionSource, log *slog.Logger) *Handler {
	return &Handler{
		controller: controller,
		resolver:   resolver,
		encryption: encryption,
		sessions:   sessions,
		log:        log,
	}
}

// Ready reports whether the encryption client finished initializing.
func (h *Handler) Ready() bool {
	if h.encryption == nil {
		return false
	}
	client, _, _ := h.encryption.Instance()
	return client != nil
}

// HandleSession describes the connected wallet and the contract resolved for
// its network.
//
// URL format: GET /api/v1/session
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, _, err := h.sessions.Session(r.Context())
	if err != nil {
		h.log.Error("Failed to load session", "err", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	response := SessionResponse{
		Session:           session,
		ChainName:         h.resolver.ChainName(session.ChainID),
		SupportedNetworks: h.resolver.SupportedNetworks(),
		Encryption:        h.encryptionState(),
	}
	if address, ok := h.resolver.Resolve(session.ChainID); ok {
		response.Contract = &address
	} else {
		unavailable := presenter.RenderUnavailable(response.ChainName, response.SupportedNetworks)
		response.Unavailable = &unavailable
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleStatus re-reads the registration state of the session account.
//
// URL format: GET /api/v1/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	session, _, err := h.sessions.Session(r.Context())
	if err != nil {
		h.log.Error("Failed to load session", "err", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	report := h.controller.RefreshStatus(r.Context(), session)
	h.writeJSON(w, http.StatusOK, StatusResponse{Report: report, Display: presenter.RenderStatus(report)})
}

// HandleWorkflow returns the last workflow snapshot.
//
// URL format: GET /api/v1/workflow
func (h *Handler) HandleWorkflow(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, workflowResponse(h.controller.Snapshot()))
}

// HandleRegister runs the register workflow.
//
// URL format: POST /api/v1/register
// Request body: {"identity": "12345"}
//
// Workflow failures are reported in the body with status 200; 409 means the
// request was inert because another workflow is in flight or the account is
// already registered.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.handleWorkflow(w, r, h.controller.Register)
}

// HandleVerify runs the verify workflow.
//
// URL format: POST /api/v1/verify
// Request body: {"identity": "12345"}
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.handleWorkflow(w, r, h.controller.Verify)
}

type runFunc func(ctx context.Context, session interfaces.Session, signer interfaces.Signer, identity string) (workflow.Snapshot, error)

func (h *Handler) handleWorkflow(w http.ResponseWriter, r *http.Request, run runFunc) {
	var req IdentityRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	session, signer, err := h.sessions.Session(r.Context())
	if err != nil {
		h.log.Error("Failed to load session", "err", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	snap, err := run(r.Context(), session, signer, req.Identity)

	response := workflowResponse(snap)
	status := http.StatusOK
	if errors.Is(err, interfaces.ErrBusy) || errors.Is(err, workflow.ErrRegistrationDisabled) {
		status = http.StatusConflict
		response.Error = errorInfo(err)
		response.Display = presenter.Describe(err, session.ChainID)
	}
	h.writeJSON(w, status, response)
}

func workflowResponse(snap workflow.Snapshot) WorkflowResponse {
	return WorkflowResponse{
		Snapshot: snap,
		Error:    errorInfo(snap.Err),
		Display:  presenter.Render(snap),
	}
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:    interfaces.KindOf(err),
		Reason:  interfaces.ReasonOf(err),
		Message: presenter.Stringify(err),
	}
}

func (h *Handler) encryptionState() string {
	if h.encryption == nil {
		return "unavailable"
	}
	client, loading, err := h.encryption.Instance()
	switch {
	case client != nil:
		return "ready"
	case loading:
		return "loading"
	case err != nil:
		return "failed"
	}
	return "unavailable"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
