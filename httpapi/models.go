package httpapi

import (
	"encoding/json"
	"net/http"

	"vertex-claude-proxy/types"
)

// modelsCreated is a fixed placeholder creation time for the synthesized
// model listing: Vertex has no model-registration timestamp to report for
// a pinned deployment, and the field is not meaningful here.
const modelsCreated = 0

// Models serves GET /v1/models, synthesizing a single-entry OpenAI-shaped
// catalog from the configured OpenAI-facing model name (EchoModelName,
// which defaults to the upstream model id), since Vertex has no
// model-listing endpoint for a pinned deployment.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	list := types.OpenAIModelList{
		Object: "list",
		Data: []types.OpenAIModel{{
			ID:      h.cfg.EchoModelName,
			Object:  "model",
			Created: modelsCreated,
			OwnedBy: "vertex-claude-proxy",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}
