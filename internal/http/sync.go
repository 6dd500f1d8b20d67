package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/pos-sync/internal/scheduler"
	"github.com/jmehdipour/pos-sync/internal/service/queue"
)

// syncStatusHandler is the on-demand health query: current state, last status
// event, and a live pending count.
func syncStatusHandler(queueSvc *queue.Service, sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		pending, err := queueSvc.CountPending(c.Request().Context())
		if err != nil {
			log.Errorf("count pending: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"state":         sched.State(),
			"pending_count": pending,
			"last_event":    sched.LastStatus(),
		})
	}
}

func syncNowHandler(sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev, err := sched.SyncNow(c.Request().Context())
		if err != nil {
			if errors.Is(err, scheduler.ErrBusy) {
				return c.JSON(http.StatusConflict, map[string]string{"error": "sync already in progress"})
			}
			if errors.Is(err, scheduler.ErrClosed) {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scheduler closed"})
			}

			log.Errorf("sync now: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "sync failed"})
		}

		return c.JSON(http.StatusOK, ev)
	}
}

// syncPauseHandler suspends scheduling, e.g. around a bulk local wipe.
func syncPauseHandler(sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		sched.Stop()
		return c.JSON(http.StatusOK, map[string]any{"state": sched.State()})
	}
}

func syncResumeHandler(sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := sched.Start(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]any{"state": sched.State()})
	}
}
