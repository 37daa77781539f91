package slot

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/slots/generate", h.GenerateSlots)
	api.GET("/slots/bookable", h.GetBookableSlots)
	api.GET("/slots", h.ListSlots)
	api.POST("/slots", h.CreateSlot)
	api.GET("/slots/:id", h.GetSlot)
	api.POST("/slots/:id/book", h.BookSlot)
	api.POST("/slots/:id/block", h.BlockSlot)
	api.POST("/slots/expire-sweep", h.ExpireSweep)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, availability.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, availability.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid), errors.Is(err, availability.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type generateRequest struct {
	DoctorBranchID uuid.UUID `json:"doctor_branch_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
	}

	result, err := h.svc.Generate(c.Request().Context(), req.DoctorBranchID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetBookableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	branchID, err := uuid.Parse(c.QueryParam("branch_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid branch_id")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	slots, err := h.svc.GetBookableSlots(c.Request().Context(), doctorID, branchID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"slots": slots,
		"total": len(slots),
	})
}

func (h *Handler) ListSlots(c echo.Context) error {
	doctorBranchID, err := uuid.Parse(c.QueryParam("doctor_branch_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_branch_id")
	}
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSlots(c.Request().Context(), doctorBranchID, from, to, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var sl Slot
	if err := c.Bind(&sl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSlot(c.Request().Context(), &sl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) BookSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.Book(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) BlockSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.Block(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ExpireSweep(c echo.Context) error {
	n, err := h.svc.ExpireSweep(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"expired": n})
}
