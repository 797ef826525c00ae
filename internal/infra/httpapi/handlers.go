// internal/infra/httpapi/handlers.go
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ritual_notification_bot/internal/app"
	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler exposes the scheduler core to collaborators: run status, instance
// state, schedule configuration, manual trigger, and the action callback
// surface the notification buttons round-trip through.
type Handler struct {
	workflows *app.WorkflowService
	schedules *app.ScheduleService
	runner    *app.Runner
	runs      activity.RunStatusRepository
	logger    *logrus.Entry
}

func NewHandler(
	workflows *app.WorkflowService,
	schedules *app.ScheduleService,
	runner *app.Runner,
	runs activity.RunStatusRepository,
	logger *logrus.Entry,
) *Handler {
	return &Handler{
		workflows: workflows,
		schedules: schedules,
		runner:    runner,
		runs:      runs,
		logger:    logger,
	}
}

type instanceResponse struct {
	Kind        string     `json:"kind"`
	Date        string     `json:"date"`
	State       string     `json:"state"`
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	SnoozeCount int        `json:"snooze_count"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type scheduleResponse struct {
	Kind      string `json:"kind"`
	Enabled   bool   `json:"enabled"`
	TimeOfDay string `json:"time_of_day"`
	Timezone  string `json:"timezone"`
	ChannelID string `json:"channel_id"`
}

type scheduleRequest struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	TimeOfDay *string `json:"time_of_day,omitempty"`
	Timezone  *string `json:"timezone,omitempty"`
	ChannelID *string `json:"channel_id,omitempty"`
}

type actionRequest struct {
	Minutes int `json:"minutes,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.runs.Get(r.Context())
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no scheduler run recorded yet"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	kind, date, ok := h.instanceKey(w, r)
	if !ok {
		return
	}
	inst, err := h.workflows.Status(r.Context(), kind, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load workflow instance")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load workflow instance"})
		return
	}
	writeJSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	kind, date, ok := h.instanceKey(w, r)
	if !ok {
		return
	}

	var body actionRequest
	if r.Body != nil {
		// Body is optional for everything but snooze.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	var inst *workflow.Instance
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		inst, err = h.workflows.Start(r.Context(), kind, date)
	case "snooze":
		inst, err = h.workflows.Snooze(r.Context(), kind, date, body.Minutes)
	case "cancel":
		inst, err = h.workflows.Cancel(r.Context(), kind, date)
	case "complete":
		inst, err = h.workflows.Complete(r.Context(), kind, date)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action: " + action})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidSnoozeDuration):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, app.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to apply workflow action")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to apply workflow action"})
		}
		return
	}
	writeJSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	configs, err := h.schedules.GetAll(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load schedule configs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load schedule configs"})
		return
	}
	out := make([]scheduleResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, toScheduleResponse(cfg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	kind, err := workflow.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var body scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cfg, err := h.schedules.Configure(r.Context(), kind, app.ScheduleUpdate{
		Enabled:   body.Enabled,
		TimeOfDay: body.TimeOfDay,
		Timezone:  body.Timezone,
		ChannelID: body.ChannelID,
	})
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to update schedule config")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to update schedule config"})
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(cfg))
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	var kinds []workflow.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := workflow.ParseKind(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		kinds = append(kinds, kind)
	}

	result, err := h.runner.RunOnce(r.Context(), kinds...)
	if err != nil {
		h.logger.WithError(err).Error("Manual trigger failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "manual run failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) instanceKey(w http.ResponseWriter, r *http.Request) (workflow.Kind, string, bool) {
	kind, err := workflow.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return "", "", false
	}
	date, err := workflow.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return "", "", false
	}
	return kind, date, true
}

func toInstanceResponse(inst *workflow.Instance) instanceResponse {
	return instanceResponse{
		Kind:        string(inst.Kind),
		Date:        inst.Date,
		State:       string(inst.State),
		SnoozeUntil: nullTimePtr(inst.SnoozeUntil),
		SnoozeCount: inst.SnoozeCount,
		NotifiedAt:  nullTimePtr(inst.NotifiedAt),
		StartedAt:   nullTimePtr(inst.StartedAt),
		CompletedAt: nullTimePtr(inst.CompletedAt),
		CancelledAt: nullTimePtr(inst.CancelledAt),
		CreatedAt:   inst.CreatedAt,
		UpdatedAt:   inst.UpdatedAt,
	}
}

func toScheduleResponse(cfg *schedule.Config) scheduleResponse {
	return scheduleResponse{
		Kind:      string(cfg.Kind),
		Enabled:   cfg.Enabled,
		TimeOfDay: cfg.TimeOfDay,
		Timezone:  cfg.Timezone,
		ChannelID: cfg.ChannelID,
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
