package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
	"github.com/ErlanBelekov/plantcare/internal/transport/http/middleware"
	"github.com/ErlanBelekov/plantcare/internal/usecase"
	"github.com/gin-gonic/gin"
)

type plantUsecaser interface {
	CreatePlant(ctx context.Context, input usecase.CreatePlantInput) (*usecase.PlantChange, error)
	GetPlant(ctx context.Context, id, userID string) (*domain.Plant, error)
	ListPlants(ctx context.Context, input usecase.ListPlantsInput) (usecase.ListPlantsResult, error)
	UpdateCadence(ctx context.Context, input usecase.UpdateCadenceInput) (*usecase.PlantChange, error)
	RecordWatering(ctx context.Context, input usecase.RecordWateringInput) (*usecase.PlantChange, error)
	DeletePlant(ctx context.Context, id, userID string) (usecase.ReminderReport, error)
	PreviewReminder(ctx context.Context, id, userID string) (usecase.ReminderPreview, error)
	CareContext(ctx context.Context, id, userID, region string) (usecase.CareContext, error)
	ProjectWaterings(ctx context.Context, id, userID string, horizon time.Duration) ([]time.Time, error)
	WateringCalendar(ctx context.Context, userID string) (string, error)
}

const (
	defaultScheduleDays = 30
	maxScheduleDays     = 366
)

type PlantHandler struct {
	uc     plantUsecaser
	logger *slog.Logger
}

func NewPlantHandler(uc plantUsecaser, logger *slog.Logger) *PlantHandler {
	return &PlantHandler{uc: uc, logger: logger.With("component", "plant_handler")}
}

// ---- requests ----

type createPlantRequest struct {
	Name          string     `json:"name"            binding:"required,max=120"`
	Species       *string    `json:"species"         binding:"omitempty,max=200"`
	IntervalDays  *int       `json:"interval_days"`
	ReminderTime  *string    `json:"reminder_time"`
	LastWateredAt *time.Time `json:"last_watered_at"`
}

type updateCadenceRequest struct {
	IntervalDays *int    `json:"interval_days"`
	ReminderTime *string `json:"reminder_time"`
	Clear        bool    `json:"clear"`
}

type recordWateringRequest struct {
	WateredAt *time.Time `json:"watered_at"`
}

var errIncomplete = errors.New("incomplete cadence")

// parseCadence returns nil when neither field is set.
func parseCadence(intervalDays *int, reminderTime *string) (*domain.CadenceSpec, error) {
	if intervalDays == nil && reminderTime == nil {
		return nil, nil
	}
	if intervalDays == nil || reminderTime == nil {
		return nil, errIncomplete
	}
	tod, err := domain.ParseTimeOfDay(*reminderTime)
	if err != nil {
		return nil, err
	}
	c, err := domain.NewCadence(*intervalDays, tod)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- responses ----

type cadenceResponse struct {
	IntervalDays int    `json:"interval_days"`
	ReminderTime string `json:"reminder_time"`
}

type plantResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Species       *string          `json:"species,omitempty"`
	Cadence       *cadenceResponse `json:"cadence"`
	LastWateredAt *time.Time       `json:"last_watered_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func toPlantResponse(p *domain.Plant) plantResponse {
	resp := plantResponse{
		ID:            p.ID,
		Name:          p.Name,
		Species:       p.Species,
		LastWateredAt: p.LastWateredAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Cadence != nil {
		resp.Cadence = &cadenceResponse{
			IntervalDays: p.Cadence.IntervalDays,
			ReminderTime: p.Cadence.ReminderTime.String(),
		}
	}
	return resp
}

type fireResponse struct {
	Kind domain.FireKind `json:"kind"`
	Time string          `json:"time,omitempty"`
	Cron string          `json:"cron,omitempty"`
	At   *time.Time      `json:"at,omitempty"`
}

type reminderResponse struct {
	Status     domain.Outcome `json:"status"`
	ReminderID string         `json:"reminder_id"`
	Fire       *fireResponse  `json:"fire,omitempty"`
	UpcomingAt *time.Time     `json:"upcoming_at,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func toReminderResponse(res scheduler.Result, err error) reminderResponse {
	resp := reminderResponse{Status: res.Outcome, ReminderID: res.ReminderID}
	if f := res.Fire; f != nil {
		fr := &fireResponse{Kind: f.Kind}
		if f.Kind == domain.FireDaily {
			fr.Time = f.Daily.String()
			fr.Cron = scheduler.CronExpr(*f)
		} else {
			at := f.At
			fr.At = &at
		}
		resp.Fire = fr
	}
	if err != nil {
		resp.Status = domain.OutcomeFailed
		resp.Error = errReminderNotUpdated
	}
	return resp
}

type plantChangeResponse struct {
	Plant    plantResponse    `json:"plant"`
	Reminder reminderResponse `json:"reminder"`
}

func toPlantChangeResponse(c *usecase.PlantChange) plantChangeResponse {
	return plantChangeResponse{
		Plant:    toPlantResponse(c.Plant),
		Reminder: toReminderResponse(c.Reminder.Result, c.Reminder.Err),
	}
}

// ---- handlers ----

func (h *PlantHandler) Create(ctx *gin.Context) {
	var req createPlantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cadence, err := parseCadence(req.IntervalDays, req.ReminderTime)
	if err != nil {
		h.badCadence(ctx, err)
		return
	}

	change, err := h.uc.CreatePlant(ctx.Request.Context(), usecase.CreatePlantInput{
		UserID:        ctx.GetString(middleware.UserIDKey),
		Name:          req.Name,
		Species:       req.Species,
		Cadence:       cadence,
		LastWateredAt: req.LastWateredAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrWateredInFuture) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errWateredInFuture})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "create plant", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toPlantChangeResponse(change))
}

func (h *PlantHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListPlants(ctx.Request.Context(), usecase.ListPlantsInput{
		UserID: ctx.GetString(middleware.UserIDKey),
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "list plants", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]plantResponse, len(result.Plants))
	for i, p := range result.Plants {
		items[i] = toPlantResponse(p)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"plants":      items,
		"next_cursor": result.NextCursor,
	})
}

func (h *PlantHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	p, err := h.uc.GetPlant(ctx.Request.Context(), id, ctx.GetString(middleware.UserIDKey))
	if err != nil {
		h.plantError(ctx, "get plant", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toPlantResponse(p))
}

func (h *PlantHandler) UpdateCadence(ctx *gin.Context) {
	id := ctx.Param("id")

	var req updateCadenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cadence *domain.CadenceSpec
	switch {
	case req.Clear && (req.IntervalDays != nil || req.ReminderTime != nil):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errClearWithCadence})
		return
	case !req.Clear:
		var err error
		cadence, err = parseCadence(req.IntervalDays, req.ReminderTime)
		if err == nil && cadence == nil {
			err = errIncomplete
		}
		if err != nil {
			h.badCadence(ctx, err)
			return
		}
	}

	change, err := h.uc.UpdateCadence(ctx.Request.Context(), usecase.UpdateCadenceInput{
		PlantID: id,
		UserID:  ctx.GetString(middleware.UserIDKey),
		Cadence: cadence,
	})
	if err != nil {
		h.plantError(ctx, "update cadence", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toPlantChangeResponse(change))
}

func (h *PlantHandler) RecordWatering(ctx *gin.Context) {
	id := ctx.Param("id")

	var req recordWateringRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := h.uc.RecordWatering(ctx.Request.Context(), usecase.RecordWateringInput{
		PlantID:   id,
		UserID:    ctx.GetString(middleware.UserIDKey),
		WateredAt: req.WateredAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrWateredInFuture) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errWateredInFuture})
			return
		}
		h.plantError(ctx, "record watering", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toPlantChangeResponse(change))
}

func (h *PlantHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	report, err := h.uc.DeletePlant(ctx.Request.Context(), id, ctx.GetString(middleware.UserIDKey))
	if err != nil {
		h.plantError(ctx, "delete plant", id, err)
		return
	}

	if report.Err != nil {
		ctx.JSON(http.StatusOK, gin.H{"reminder": toReminderResponse(report.Result, report.Err)})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *PlantHandler) Reminder(ctx *gin.Context) {
	id := ctx.Param("id")

	preview, err := h.uc.PreviewReminder(ctx.Request.Context(), id, ctx.GetString(middleware.UserIDKey))
	if err != nil {
		h.plantError(ctx, "preview reminder", id, err)
		return
	}

	resp := toReminderResponse(preview.Result, nil)
	resp.UpcomingAt = preview.Upcoming
	ctx.JSON(http.StatusOK, resp)
}

func (h *PlantHandler) CareContext(ctx *gin.Context) {
	id := ctx.Param("id")

	cc, err := h.uc.CareContext(ctx.Request.Context(), id, ctx.GetString(middleware.UserIDKey), ctx.Query("region"))
	if err != nil {
		h.plantError(ctx, "care context", id, err)
		return
	}

	ctx.JSON(http.StatusOK, cc)
}

// Schedule lists upcoming reminders for the next ?days days (default 30),
// assuming each watering happens when reminded.
func (h *PlantHandler) Schedule(ctx *gin.Context) {
	id := ctx.Param("id")

	days := defaultScheduleDays
	if q := ctx.Query("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > maxScheduleDays {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDays})
			return
		}
		days = n
	}

	times, err := h.uc.ProjectWaterings(ctx.Request.Context(), id, ctx.GetString(middleware.UserIDKey), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.plantError(ctx, "project waterings", id, err)
		return
	}

	if times == nil {
		times = []time.Time{}
	}
	ctx.JSON(http.StatusOK, gin.H{"reminders": times})
}

func (h *PlantHandler) Calendar(ctx *gin.Context) {
	feed, err := h.uc.WateringCalendar(ctx.Request.Context(), ctx.GetString(middleware.UserIDKey))
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "watering calendar", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}

func (h *PlantHandler) badCadence(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, errIncomplete):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errIncompleteCadence})
	case errors.Is(err, domain.ErrInvalidTimeOfDay):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidTimeOfDay})
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCadence})
	}
}

func (h *PlantHandler) plantError(ctx *gin.Context, op, id string, err error) {
	if errors.Is(err, domain.ErrPlantNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": errPlantNotFound})
		return
	}
	h.logger.ErrorContext(ctx.Request.Context(), op, "plant_id", id, "error", err)
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}
