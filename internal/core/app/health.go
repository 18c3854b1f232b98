package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check reports "up" unless the last run failed or an enabled component is
// missing.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	a := s.app
	a.runMu.Lock()
	last, lastErr, lastAt := a.last, a.lastErr, a.lastAt
	a.runMu.Unlock()

	switch {
	case lastErr != nil:
		status.Status = "degraded"
		status.Components["analysis"] = fmt.Sprintf("failed: %v", lastErr)
	case last == nil:
		status.Components["analysis"] = "pending"
	default:
		status.Components["analysis"] = fmt.Sprintf("ok (%d functions, %d edges, %d iterations, at %s)",
			len(last.Functions), len(last.Edges), last.Iterations, lastAt.UTC().Format(time.RFC3339))
	}

	if a.sources != nil {
		status.Components["sources"] = fmt.Sprintf("ok (%d cached)", a.sources.Len())
	} else {
		status.Status = "degraded"
		status.Components["sources"] = "missing"
	}

	if a.store != nil {
		status.Components["store"] = "ok"
	} else if a.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["store"] = "missing but enabled in config"
	}

	return status
}
