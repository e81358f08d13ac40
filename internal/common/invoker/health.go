// internal/common/invoker/health.go
package invoker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
}

// CheckHealth probes a collaborator's health endpoint. Best-effort: any
// failure, non-200 status, or body other than status "ok" reports false.
// It never returns an error and uses its own short timeout.
func (i *Invoker) CheckHealth(ctx context.Context, target, healthURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Request-Id", i.sessions.NewRequestID())
	if i.cfg.ClientID != "" {
		req.Header.Set("X-Client-Id", i.cfg.ClientID)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.Debug("health probe failed", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "ok"
}
