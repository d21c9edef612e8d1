package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edcollab/edcollab/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("/recent", h.Recent)
	g.GET("/unread", h.Unread)
	g.GET("/count", h.Count)
	g.POST("/:id/read", h.MarkRead)
	g.POST("/read-all", h.MarkAllRead)
}

type markReadRequest struct {
	RecipientID int64 `json:"recipient_id"`
}

func (h *Handler) Recent(c echo.Context) error {
	recipientID, err := recipientParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid recipient_id"})
	}
	params := pagination.FromContext(c)

	items, total, err := h.svc.Recent(c.Request().Context(), recipientID, params)
	if err != nil {
		if errors.Is(err, ErrRecipientRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	resp := pagination.NewResponse(items, total, params.Limit, params.Offset)
	return c.JSON(http.StatusOK, resp.WithLinks(c.Request().URL.Path))
}

func (h *Handler) Unread(c echo.Context) error {
	recipientID, err := recipientParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid recipient_id"})
	}
	items, err := h.svc.Unread(c.Request().Context(), recipientID)
	if err != nil {
		if errors.Is(err, ErrRecipientRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []*Notification{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Count(c echo.Context) error {
	recipientID, err := recipientParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid recipient_id"})
	}
	count, err := h.svc.CountUnread(c.Request().Context(), recipientID)
	if err != nil {
		if errors.Is(err, ErrRecipientRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, count)
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid notification id"})
	}
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err = h.svc.MarkRead(c.Request().Context(), id, req.RecipientID)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrRecipientRequired):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	marked, err := h.svc.MarkAllRead(c.Request().Context(), req.RecipientID)
	if err != nil {
		if errors.Is(err, ErrRecipientRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": marked})
}

func recipientParam(c echo.Context) (int64, error) {
	v := c.QueryParam("recipient_id")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
