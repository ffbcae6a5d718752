package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/storekit/wallet-bridge/internal/common"
	"github.com/storekit/wallet-bridge/internal/gateway"
	"github.com/storekit/wallet-bridge/internal/negotiation"
	"github.com/storekit/wallet-bridge/internal/prefetch"
	"github.com/storekit/wallet-bridge/internal/present"
	"github.com/storekit/wallet-bridge/internal/wallet"
)

const defaultInitTimeout = 15 * time.Second

// Handler exposes the page-facing HTTP surface: session creation, the
// command poll, and the provider callback relay.
type Handler struct {
	Registry     *negotiation.Registry
	Orchestrator *negotiation.Orchestrator
	Relay        *Relay
	Queue        *present.Queue
	Prefetch     *prefetch.Cache
	Builder      wallet.DescriptorBuilder
	Validate     *validator.Validate
	Log          zerolog.Logger

	// InitTimeout bounds session initialization, which runs detached from the
	// creating request so the page can start polling immediately.
	InitTimeout time.Duration
}

type createSessionReq struct {
	Surface   string            `json:"surface" validate:"required,oneof=product cart checkout"`
	ProductID string            `json:"productId" validate:"required_if=Surface product"`
	Nonces    map[string]string `json:"nonces"`
}

type sessionResp struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
}

// CreateSession binds a new negotiation session to a checkout surface and
// kicks off the readiness probe in the background.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid session request", map[string]any{"error": err.Error()})
			return
		}
	}
	surface, err := negotiation.ParseSurface(req.Surface)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_SURFACE", "no checkout surface detected", nil)
		return
	}

	s := h.Registry.Create(surface, req.ProductID, gateway.CallContext{
		ProductID: req.ProductID,
		Nonces:    req.Nonces,
	})

	timeout := h.InitTimeout
	if timeout <= 0 {
		timeout = defaultInitTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.Orchestrator.Initialize(ctx, s); err != nil {
			h.Log.Error().Err(err).Str("session_id", s.ID).Msg("session initialization")
		}
	}()

	common.JSON(w, http.StatusCreated, sessionResp{SessionID: s.ID, State: string(s.State())})
}

// Commands drains and returns the session's pending UI commands in order.
func (h *Handler) Commands(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, ok := h.Registry.Get(id)
	if !ok {
		h.Queue.Forget(id)
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown or expired session", nil)
		return
	}
	cmds := h.Queue.Drain(id)
	if cmds == nil {
		cmds = []present.Command{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"state":    s.State(),
		"commands": cmds,
	})
}

type readyReq struct {
	Ready bool `json:"ready"`
}

// Ready delivers the page's readiness probe answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req readyReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	delivered := h.Relay.ResolveReadiness(id, req.Ready)
	common.JSON(w, http.StatusOK, map[string]any{"accepted": delivered})
}

// Click forwards a payment button press. The response returns once the sheet
// request has been enqueued (or the failure rendered).
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Relay.Handler().OnButtonActivated(r.Context(), id); err != nil {
		h.writeCallbackError(w, id, err)
		return
	}
	h.writeState(w, id)
}

// DataCallback forwards a shipping address/option intent and returns its
// resolution for the page to hand back to the sheet.
func (h *Handler) DataCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var data wallet.IntermediatePaymentData
	if err := common.DecodeJSON(r, &data); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	res, err := h.Relay.Handler().OnPaymentDataChanged(r.Context(), id, data)
	if err != nil {
		h.writeCallbackError(w, id, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// AuthorizeCallback forwards the final authorization intent.
func (h *Handler) AuthorizeCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var data wallet.PaymentData
	if err := common.DecodeJSON(r, &data); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	res, err := h.Relay.Handler().OnPaymentAuthorized(r.Context(), id, data)
	if err != nil {
		h.writeCallbackError(w, id, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// Close reports that the shopper dismissed the sheet without paying.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Relay.Handler().OnSheetClosed(r.Context(), id); err != nil {
		h.writeCallbackError(w, id, err)
		return
	}
	h.writeState(w, id)
}

// PrefetchRequest serves a cached, estimate-tagged transaction request so the
// page can warm the sheet before real pricing is known.
func (h *Handler) PrefetchRequest(w http.ResponseWriter, r *http.Request) {
	surface, err := negotiation.ParseSurface(r.URL.Query().Get("surface"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_SURFACE", "no checkout surface detected", nil)
		return
	}
	info, ok, err := h.Prefetch.Load(r.Context(), string(surface), r.URL.Query().Get("productId"))
	if err != nil {
		h.Log.Warn().Err(err).Msg("prefetch lookup")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, h.Builder.PrefetchRequest(info))
}

func (h *Handler) writeState(w http.ResponseWriter, id string) {
	s, ok := h.Registry.Get(id)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown or expired session", nil)
		return
	}
	common.JSON(w, http.StatusOK, sessionResp{SessionID: s.ID, State: string(s.State())})
}

func (h *Handler) writeCallbackError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, negotiation.ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown or expired session", nil)
	case errors.Is(err, negotiation.ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "callback not valid in current state", nil)
	default:
		h.Log.Error().Err(err).Str("session_id", id).Msg("callback handling")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "callback handling failed", nil)
	}
}
