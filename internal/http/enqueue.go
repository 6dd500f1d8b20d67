package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/service/queue"
)

type enqueueReq struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  string          `json:"operation"` // create | update | delete
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// enqueueHandler lets out-of-process domain collaborators push mutations into
// the outbox over the local API.
func enqueueHandler(queueSvc *queue.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req enqueueReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		op := model.Operation(strings.ToLower(strings.TrimSpace(req.Operation)))

		id, err := queueSvc.Enqueue(c.Request().Context(), req.EntityType, req.EntityID, op, req.Payload)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrMissingEntity),
				errors.Is(err, queue.ErrInvalidOperation),
				errors.Is(err, queue.ErrMissingPayload):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			log.Errorf("enqueue failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusAccepted, map[string]any{
			"enqueued":    true,
			"id":          id,
			"entity_type": req.EntityType,
			"entity_id":   req.EntityID,
			"operation":   op.String(),
		})
	}
}
