package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/messages", h.ListMessages)
	api.POST("/messages", h.SendMessage)
	api.POST("/messages/read", h.MarkRead)
	api.GET("/poll", h.Poll)
}

type sendRequest struct {
	CaseID       int64  `json:"case_id"`
	AuthorID     int64  `json:"author_id"`
	AuthorName   string `json:"author_name"`
	AuthorRole   string `json:"author_role"`
	Body         string `json:"body"`
	AttachmentID string `json:"attachment_id"`
}

type markReadRequest struct {
	CaseID int64 `json:"case_id"`
	UserID int64 `json:"user_id"`
}

// pollResponse matches the envelope the polling clients expect.
type pollResponse struct {
	Messages []*Message `json:"messages"`
}

func (h *Handler) ListMessages(c echo.Context) error {
	caseID, err := int64QueryParam(c, "case_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid case_id"})
	}
	msgs, err := h.svc.History(c.Request().Context(), caseID)
	if err != nil {
		if errors.Is(err, ErrCaseRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SendMessage(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	author := Author{ID: req.AuthorID, Name: req.AuthorName, Role: req.AuthorRole}
	m, err := h.svc.Send(c.Request().Context(), req.CaseID, author, req.Body, req.AttachmentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCaseRequired), errors.Is(err, ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			// A dangling attachment reference is a client error too.
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) MarkRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	marked, err := h.svc.MarkRead(c.Request().Context(), req.CaseID, req.UserID)
	if err != nil {
		if errors.Is(err, ErrCaseRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": marked})
}

func (h *Handler) Poll(c echo.Context) error {
	caseID, err := int64QueryParam(c, "case_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid case_id"})
	}
	sinceID, err := int64QueryParam(c, "since_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid since_id"})
	}

	msgs, err := h.svc.Poll(c.Request().Context(), caseID, sinceID)
	if err != nil {
		if errors.Is(err, ErrCaseRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return c.JSON(http.StatusOK, pollResponse{Messages: msgs})
}

func int64QueryParam(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
