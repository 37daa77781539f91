package queue

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the queue endpoints. The :id segment is the patient
// schedule id, the identifier the visit subsystem addresses entries by.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/queue/checkin", h.CheckIn)
	api.POST("/queue/:id/in-service", h.MarkInService)
	api.POST("/queue/:id/done", h.MarkDone)
	api.POST("/queue/recompute", h.Recompute)
	api.GET("/queue", h.ListQueue)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) CheckIn(c echo.Context) error {
	var req CheckInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.svc.CheckIn(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) MarkInService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entry, err := h.svc.MarkInService(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) MarkDone(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entry, err := h.svc.MarkDone(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

type recomputeRequest struct {
	BranchID uuid.UUID `json:"branch_id"`
	Date     string    `json:"date"`
}

func (h *Handler) Recompute(c echo.Context) error {
	var req recomputeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}
	if err := h.svc.Recompute(c.Request().Context(), req.BranchID, date); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListQueue(c echo.Context) error {
	branchID, err := uuid.Parse(c.QueryParam("branch_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid branch_id")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}
	resp, err := h.svc.ListQueue(c.Request().Context(), branchID, date, c.QueryParam("sort_by"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
