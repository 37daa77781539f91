package availability

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinq/clinq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doctor-branches", h.CreateDoctorBranch)
	api.GET("/doctor-branches", h.ListDoctorBranches)
	api.GET("/doctor-branches/:id", h.GetDoctorBranch)
	api.PUT("/doctor-branches/:id", h.UpdateDoctorBranch)
	api.POST("/doctor-branches/:id/deactivate", h.DeactivateDoctorBranch)

	api.POST("/doctor-branches/:id/weekly-entries", h.CreateWeeklyEntry)
	api.GET("/doctor-branches/:id/weekly-entries", h.ListWeeklyEntries)
	api.PUT("/weekly-entries/:id", h.UpdateWeeklyEntry)
	api.DELETE("/weekly-entries/:id", h.DeleteWeeklyEntry)

	api.POST("/doctor-branches/:id/breaks", h.CreateBreak)
	api.GET("/doctor-branches/:id/breaks", h.ListBreaks)
	api.DELETE("/breaks/:id", h.DeleteBreak)

	api.POST("/doctor-branches/:id/leaves", h.CreateLeave)
	api.GET("/doctor-branches/:id/leaves", h.ListLeaves)
	api.DELETE("/leaves/:id", h.DeleteLeave)

	api.POST("/doctor-branches/:id/blocked-slots", h.CreateBlockedSlot)
	api.GET("/doctor-branches/:id/blocked-slots", h.ListBlockedSlots)
	api.DELETE("/blocked-slots/:id", h.DeleteBlockedSlot)

	api.POST("/doctor-branches/:id/release-rules", h.CreateReleaseRule)
	api.GET("/doctor-branches/:id/release-rules", h.ListReleaseRules)
	api.PUT("/release-rules/:id", h.UpdateReleaseRule)
	api.DELETE("/release-rules/:id", h.DeleteReleaseRule)
}

// httpError maps domain sentinel errors onto status codes.
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

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- DoctorBranch --

func (h *Handler) CreateDoctorBranch(c echo.Context) error {
	var d DoctorBranch
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDoctorBranch(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctorBranch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctorBranch(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctorBranches(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorBranches(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctorBranch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var d DoctorBranch
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDoctorBranch(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeactivateDoctorBranch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateDoctorBranch(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- WeeklyScheduleEntry --

func (h *Handler) CreateWeeklyEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var e WeeklyScheduleEntry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.DoctorBranchID = id
	if err := h.svc.CreateWeeklyEntry(c.Request().Context(), &e); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListWeeklyEntries(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListWeeklyEntries(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateWeeklyEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.repo.GetWeeklyEntry(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	var e WeeklyScheduleEntry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	e.DoctorBranchID = existing.DoctorBranchID
	if err := h.svc.UpdateWeeklyEntry(c.Request().Context(), &e); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteWeeklyEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWeeklyEntry(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ScheduleBreak --

func (h *Handler) CreateBreak(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var b ScheduleBreak
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b.DoctorBranchID = id
	if err := h.svc.CreateBreak(c.Request().Context(), &b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBreaks(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListBreaks(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteBreak(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBreak(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- DoctorLeave --

func (h *Handler) CreateLeave(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var l DoctorLeave
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.DoctorBranchID = id
	if err := h.svc.CreateLeave(c.Request().Context(), &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLeaves(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListLeaves(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteLeave(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLeave(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- BlockedSlot --

func (h *Handler) CreateBlockedSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var b BlockedSlot
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b.DoctorBranchID = id
	if err := h.svc.CreateBlockedSlot(c.Request().Context(), &b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBlockedSlots(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListBlockedSlots(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteBlockedSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBlockedSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ReleaseRule --

func (h *Handler) CreateReleaseRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r ReleaseRule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.DoctorBranchID = id
	if err := h.svc.CreateReleaseRule(c.Request().Context(), &r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReleaseRules(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListReleaseRules(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateReleaseRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.GetReleaseRule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	var r ReleaseRule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.ID = id
	r.DoctorBranchID = existing.DoctorBranchID
	if err := h.svc.UpdateReleaseRule(c.Request().Context(), &r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteReleaseRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReleaseRule(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
