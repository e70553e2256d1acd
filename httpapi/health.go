package httpapi

import (
	"encoding/json"
	"net/http"
)

// healthResponse is the GET /health body: a status string plus a snapshot
// of total/successful/failed request counts, quota errors, and retries.
type healthResponse struct {
	Status  string          `json:"status"`
	Metrics healthMetricsJSON `json:"metrics"`
}

type healthMetricsJSON struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	QuotaErrors        int64 `json:"quota_errors"`
	RetryAttempts      int64 `json:"retry_attempts"`
}

// Health serves GET /health with the current metrics snapshot.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.metrics.Snapshot()
	resp := healthResponse{
		Status: "ok",
		Metrics: healthMetricsJSON{
			TotalRequests:      snap.TotalRequests,
			SuccessfulRequests: snap.SuccessfulRequests,
			FailedRequests:     snap.FailedRequests,
			QuotaErrors:        snap.QuotaErrors,
			RetryAttempts:      snap.RetryAttempts,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
