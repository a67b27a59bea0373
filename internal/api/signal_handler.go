package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/slidegen/internal/api/shared"
	"github.com/phrazzld/slidegen/internal/platform/logger"
)

// GlobalSignal is the process-wide cancellation switch.
type GlobalSignal interface {
	RequestCancel() error
	Clear() error
	IsCancelled() bool
}

// SignalHandler exposes the global cancellation signal.
type SignalHandler struct {
	signal GlobalSignal
	logger *slog.Logger
}

// NewSignalHandler creates a new SignalHandler
func NewSignalHandler(signal GlobalSignal, logger *slog.Logger) *SignalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalHandler{signal: signal, logger: logger.With("component", "signal_handler")}
}

// Status handles GET /api/cancel
func (h *SignalHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, SignalResponse{Cancelled: h.signal.IsCancelled()})
}

// Request handles POST /api/cancel. Every running job stops at its next
// checkpoint.
func (h *SignalHandler) Request(w http.ResponseWriter, r *http.Request) {
	if err := h.signal.RequestCancel(); err != nil {
		HandleAPIError(w, r, err, "Failed to request cancellation")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Warn("global cancellation requested",
		"subject", shared.GetSubject(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, SignalResponse{Cancelled: true})
}

// Clear handles DELETE /api/cancel
func (h *SignalHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.signal.Clear(); err != nil {
		HandleAPIError(w, r, err, "Failed to clear cancellation")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Info("global cancellation cleared")
	shared.RespondWithJSON(w, r, http.StatusOK, SignalResponse{Cancelled: h.signal.IsCancelled()})
}
