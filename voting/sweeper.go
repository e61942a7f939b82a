// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"log/slog"
	"time"
)

// Sweep completes overdue questions every interval until ctx is cancelled.
func (s *Service) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("status sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("status sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.RefreshStatuses(ctx)
			if err != nil {
				slog.Error("failed to refresh question statuses", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("questions completed by sweeper", "count", n)
			}
		}
	}
}
