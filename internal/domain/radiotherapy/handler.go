package radiotherapy

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radonc/rtcare/internal/platform/auth"
	"github.com/radonc/rtcare/pkg/pagination"
)

type Handler struct {
	svc   *Service
	clock Clock
	loc   *time.Location
}

// NewHandler wires the service to HTTP. "today" is taken from clock in loc
// unless a request overrides it with ?as_of=YYYY-MM-DD.
func NewHandler(svc *Service, clock Clock, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, clock: clock, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all clinic staff
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	read.GET("/dashboard", h.Dashboard)
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/archive", h.ListArchive)
	read.GET("/patients/inpatients", h.ListInpatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/summary", h.GetSummary)
	read.GET("/patients/:id/stage", h.GetStage)
	read.GET("/patients/:id/progress", h.GetProgress)
	read.GET("/patients/:id/missed-days", h.GetMissedDays)
	read.GET("/patients/:id/blood-test-due", h.GetBloodTestDue)
	read.GET("/patients/:id/diagnosis-text", h.GetDiagnosisText)
	read.GET("/patients/:id/fractions", h.ListFractions)
	read.GET("/patients/:id/incapacities", h.ListIncapacities)
	read.GET("/fractions/:id", h.GetFraction)
	read.GET("/incapacities/expiring", h.ListExpiringIncapacities)

	// Nurse actions – confirm delivery, record blood tests and missed sessions
	nurse := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	nurse.POST("/fractions/confirm-delivered", h.ConfirmDelivered)
	nurse.POST("/fractions/:id/missed", h.MarkMissed)
	nurse.POST("/patients/:id/blood-test", h.ConfirmBloodTest)

	// Doctor actions – treatment plan and schedule changes
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/patients", h.CreatePatient)
	doctor.PUT("/patients/:id", h.UpdatePatient)
	doctor.POST("/patients/:id/fractions/generate", h.GenerateSchedule)
	doctor.POST("/patients/:id/discharge/reconcile", h.ReconcileDischarge)
	doctor.PUT("/fractions/:id", h.EditFraction)
	doctor.POST("/fractions/:id/postpone", h.PostponeFraction)
	doctor.POST("/fractions/confirm-doctor", h.ConfirmByDoctor)
	doctor.POST("/fractions/confirm-today", h.ConfirmToday)
	doctor.POST("/patients/:id/incapacities", h.CreateIncapacity)
	doctor.PUT("/incapacities/:id", h.UpdateIncapacity)
	doctor.DELETE("/incapacities/:id", h.DeleteIncapacity)

	// Admin – destructive and clinic-wide operations
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeletePatient)
	admin.POST("/discharge/recalculate", h.RecalculateAll)
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientInput):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// asOf is the day derived views are computed for: ?as_of= when given,
// otherwise the clinic's today. Writes use clinicToday and ignore as_of.
func (h *Handler) asOf(c echo.Context) (time.Time, error) {
	if s := c.QueryParam("as_of"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid as_of")
		}
		return d, nil
	}
	return h.clinicToday(), nil
}

func (h *Handler) clinicToday() time.Time {
	return h.clock.Today(h.loc)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := req.Patient(uuid.Nil)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := req.Patient(id)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPatients pages through all patients, or through one derived stage when
// ?stage= is given.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	if s := c.QueryParam("stage"); s != "" {
		stage, ok := ParseStage(s)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid stage")
		}
		today, err := h.asOf(c)
		if err != nil {
			return err
		}
		items, err := h.svc.ListPatientsByStage(c.Request().Context(), stage, today)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, pg), len(items), pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListArchive(c echo.Context) error {
	pg := pagination.FromContext(c)
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPatientsByStage(c.Request().Context(), StageArchived, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) ListInpatients(c echo.Context) error {
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListInpatients(c.Request().Context(), today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ConfirmBloodTest(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	today := h.clinicToday()
	p, err := h.svc.ConfirmBloodTest(c.Request().Context(), id, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Derived View Handlers --

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GetTreatmentSummary(c.Request().Context(), id, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetStage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	stage, err := h.svc.GetDisplayStage(c.Request().Context(), id, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": id,
		"as_of":      today.Format("2006-01-02"),
		"stage":      stage,
	})
}

func (h *Handler) GetProgress(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	pr, err := h.svc.GetProgress(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pr)
}

func (h *Handler) GetMissedDays(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	n, err := h.svc.GetMissedWorkingDays(c.Request().Context(), id, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id":          id,
		"as_of":               today.Format("2006-01-02"),
		"missed_working_days": n,
	})
}

func (h *Handler) GetBloodTestDue(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	due, err := h.svc.GetNextBloodTestDueDate(c.Request().Context(), id, today)
	if err != nil {
		return httpError(err)
	}
	var dueStr *string
	if due != nil {
		s := due.Format("2006-01-02")
		dueStr = &s
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": id,
		"as_of":      today.Format("2006-01-02"),
		"due_date":   dueStr,
	})
}

func (h *Handler) GetDiagnosisText(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": DiagnosisText(p)})
}

func (h *Handler) Dashboard(c echo.Context) error {
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Schedule & Discharge Handlers --

func (h *Handler) GenerateSchedule(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	fractions, err := h.svc.GenerateSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, fractions)
}

func (h *Handler) ReconcileDischarge(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	res, err := h.svc.ReconcileDischargeDate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RecalculateAll(c echo.Context) error {
	dryRun, _ := strconv.ParseBool(c.QueryParam("dry_run"))
	report, err := h.svc.ReconcileAllDischargeDates(c.Request().Context(), dryRun)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// -- Fraction Handlers --

func (h *Handler) ListFractions(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	fractions, err := h.svc.ListFractions(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, fractions)
}

func (h *Handler) GetFraction(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetFraction(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) EditFraction(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req FractionEditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	edit, err := req.Edit()
	if err != nil {
		return httpError(err)
	}
	today := h.clinicToday()
	f, err := h.svc.EditFraction(c.Request().Context(), id, edit, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) PostponeFraction(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req PostponeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	newDate, err := ParseDate(req.NewDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid new_date")
	}
	today := h.clinicToday()
	f, err := h.svc.PostponeFraction(c.Request().Context(), id, newDate, req.Reason, today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) MarkMissed(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.MarkFractionMissed(c.Request().Context(), id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ConfirmDelivered(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.ConfirmDelivered(c.Request().Context(), req.FractionIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"confirmed": n})
}

func (h *Handler) ConfirmByDoctor(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.ConfirmByDoctor(c.Request().Context(), req.FractionIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"confirmed": n})
}

func (h *Handler) ConfirmToday(c echo.Context) error {
	today := h.clinicToday()
	n, err := h.svc.ConfirmTodayFractions(c.Request().Context(), today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":      today.Format("2006-01-02"),
		"confirmed": n,
	})
}

// -- Medical Incapacity Handlers --

func (h *Handler) ListIncapacities(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListIncapacities(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateIncapacity(c echo.Context) error {
	patientID, err := paramID(c)
	if err != nil {
		return err
	}
	var req IncapacityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mi, err := req.Incapacity(uuid.Nil, patientID)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.CreateIncapacity(c.Request().Context(), mi); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, mi)
}

func (h *Handler) UpdateIncapacity(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req IncapacityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing, err := h.svc.GetIncapacity(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	mi, err := req.Incapacity(id, existing.PatientID)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.UpdateIncapacity(c.Request().Context(), mi); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, mi)
}

func (h *Handler) DeleteIncapacity(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteIncapacity(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListExpiringIncapacities(c echo.Context) error {
	today, err := h.asOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ExpiringIncapacities(c.Request().Context(), today)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
