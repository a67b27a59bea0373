package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/slidegen/internal/api/shared"
	"github.com/phrazzld/slidegen/internal/platform/logger"
	"github.com/phrazzld/slidegen/internal/providers"
)

// ProviderCatalog lists the registered providers and the local ollama
// models.
type ProviderCatalog interface {
	List() []providers.Info
	OllamaModels(ctx context.Context) ([]string, error)
}

// ProviderHandler serves provider discovery.
type ProviderHandler struct {
	catalog ProviderCatalog
	logger  *slog.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(catalog ProviderCatalog, logger *slog.Logger) *ProviderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderHandler{catalog: catalog, logger: logger.With("component", "provider_handler")}
}

// ListProviders handles GET /api/providers
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{"providers": h.catalog.List()})
}

// OllamaModels handles GET /api/providers/ollama/models
func (h *ProviderHandler) OllamaModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.OllamaModels(r.Context())
	if err != nil || len(models) == 0 {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("ollama discovery failed, returning defaults",
			"error", err)
		shared.RespondWithJSON(w, r, http.StatusOK, OllamaModelsResponse{
			Models:    providers.DefaultModels("ollama"),
			Reachable: err == nil,
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, OllamaModelsResponse{Models: models, Reachable: true})
}
