package clinical

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sigchi/clinic/internal/platform/apperr"
	"github.com/sigchi/clinic/internal/platform/auth"
	"github.com/sigchi/clinic/pkg/pagination"
)

// byPatientDefaultLimit is the page size of GET /histories/patient/:patient_id.
const byPatientDefaultLimit = 50

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/histories")
	g.POST("", h.CreateHistory)
	g.GET("", h.ListHistories)
	g.GET("/patient/:patient_id", h.ListPatientHistories)
	g.GET("/:id", h.GetHistory)
	g.PUT("/:id", h.UpdateHistory)
	g.DELETE("/:id", h.DeleteHistory)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

func listResponse(c echo.Context, items []*ClinicalHistory, total int, pg pagination.Params) error {
	if items == nil {
		items = []*ClinicalHistory{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateHistory(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	var in CreateHistoryInput
	if err := c.Bind(&in); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
	}
	out, err := h.svc.Create(c.Request().Context(), caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListHistories(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), caller, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return listResponse(c, items, total, pg)
}

func (h *Handler) ListPatientHistories(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	patientID, err := paramID(c, "patient_id")
	if err != nil {
		return err
	}
	pg := pagination.WithDefault(c, byPatientDefaultLimit)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), caller, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return listResponse(c, items, total, pg)
}

func (h *Handler) GetHistory(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p HistoryPatch
	if err := c.Bind(&p); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
	}
	out, err := h.svc.Update(c.Request().Context(), caller, id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteHistory(c echo.Context) error {
	caller, err := auth.RequireCaller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), caller, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
