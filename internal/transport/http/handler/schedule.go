package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/usecase"
)

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type scheduleRequest struct {
	FrequencyType           string     `json:"frequency_type"  binding:"required,oneof=immediate daily weekly monthly custom"`
	StartDate               *time.Time `json:"start_date"`
	EndDate                 *time.Time `json:"end_date"`
	ReleaseTime             string     `json:"release_time"`
	DaysOfWeek              []string   `json:"days_of_week"`
	TimeZone                string     `json:"time_zone"`
	CronExpression          *string    `json:"cron_expression"`
	AutoPublish             *bool      `json:"auto_publish"`
	SendNotifications       *bool      `json:"send_notifications"`
	NotificationHoursBefore int        `json:"notification_hours_before" binding:"omitempty,min=1,max=168"`
	ReminderHoursBefore     int        `json:"reminder_hours_before"     binding:"omitempty,min=1,max=168"`
	MaxExecutions           *int       `json:"max_executions"            binding:"omitempty,min=1"`
}

func (r scheduleRequest) toInput() (usecase.ScheduleInput, error) {
	days, err := parseWeekdays(r.DaysOfWeek)
	if err != nil {
		return usecase.ScheduleInput{}, err
	}

	input := usecase.ScheduleInput{
		Frequency:               domain.FrequencyType(r.FrequencyType),
		EndDate:                 r.EndDate,
		ReleaseTime:             r.ReleaseTime,
		DaysOfWeek:              days,
		TimeZone:                r.TimeZone,
		CronExpr:                r.CronExpression,
		AutoPublish:             r.AutoPublish,
		SendNotifications:       r.SendNotifications,
		NotificationHoursBefore: r.NotificationHoursBefore,
		ReminderHoursBefore:     r.ReminderHoursBefore,
		MaxExecutions:           r.MaxExecutions,
	}
	if r.StartDate != nil {
		input.StartDate = *r.StartDate
	}
	return input, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return nil, nil
	}
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		d, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown day of week %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

type scheduleResponse struct {
	ID                      string     `json:"id"`
	SequenceID              string     `json:"sequence_id"`
	AgencyID                string     `json:"agency_id"`
	FrequencyType           string     `json:"frequency_type"`
	StartDate               time.Time  `json:"start_date"`
	EndDate                 *time.Time `json:"end_date,omitempty"`
	ReleaseTime             string     `json:"release_time"`
	DaysOfWeek              []string   `json:"days_of_week,omitempty"`
	TimeZone                string     `json:"time_zone"`
	CronExpression          *string    `json:"cron_expression,omitempty"`
	AutoPublish             bool       `json:"auto_publish"`
	SendNotifications       bool       `json:"send_notifications"`
	NotificationHoursBefore int        `json:"notification_hours_before"`
	ReminderHoursBefore     int        `json:"reminder_hours_before"`
	MaxExecutions           *int       `json:"max_executions,omitempty"`
	Status                  string     `json:"status"`
	NextExecutionAt         *time.Time `json:"next_execution_at,omitempty"`
	LastExecutionAt         *time.Time `json:"last_execution_at,omitempty"`
	ExecutionCount          int        `json:"execution_count"`
	ConsecutiveFailures     int        `json:"consecutive_failures"`
	LastError               *string    `json:"last_error,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	var days []string
	for _, d := range s.DaysOfWeek {
		days = append(days, strings.ToLower(d.String()))
	}
	return scheduleResponse{
		ID:                      s.ID,
		SequenceID:              s.SequenceID,
		AgencyID:                s.AgencyID,
		FrequencyType:           string(s.Frequency),
		StartDate:               s.StartDate,
		EndDate:                 s.EndDate,
		ReleaseTime:             s.ReleaseTime.String(),
		DaysOfWeek:              days,
		TimeZone:                s.TimeZone,
		CronExpression:          s.CronExpr,
		AutoPublish:             s.AutoPublish,
		SendNotifications:       s.SendNotifications,
		NotificationHoursBefore: s.NotificationHoursBefore,
		ReminderHoursBefore:     s.ReminderHoursBefore,
		MaxExecutions:           s.MaxExecutions,
		Status:                  string(s.Status),
		NextExecutionAt:         s.NextExecutionAt,
		LastExecutionAt:         s.LastExecutionAt,
		ExecutionCount:          s.ExecutionCount,
		ConsecutiveFailures:     s.ConsecutiveFailures,
		LastError:               s.LastError,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
	}
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.Create(c.Request.Context(), usecase.CreateScheduleInput{
		ActorID:       c.GetString("userID"),
		SequenceID:    c.Param("sequenceId"),
		ScheduleInput: input,
	})
	if err != nil {
		respondError(c, h.logger, "create schedule", err)
		return
	}
	c.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.Update(c.Request.Context(), usecase.UpdateScheduleInput{
		ActorID:       c.GetString("userID"),
		ScheduleID:    c.Param("id"),
		ScheduleInput: input,
	})
	if err != nil {
		respondError(c, h.logger, "update schedule", err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) GetByID(c *gin.Context) {
	s, err := h.uc.Get(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get schedule", err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Pause(c *gin.Context) {
	if err := h.uc.Pause(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		respondError(c, h.logger, "pause schedule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Resume(c *gin.Context) {
	s, err := h.uc.Resume(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "resume schedule", err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Cancel(c *gin.Context) {
	if err := h.uc.Cancel(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		respondError(c, h.logger, "cancel schedule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) ListBySequence(c *gin.Context) {
	schedules, err := h.uc.ListBySequence(c.Request.Context(), c.GetString("userID"), c.Param("sequenceId"))
	if err != nil {
		respondError(c, h.logger, "list schedules by sequence", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": toScheduleResponses(schedules)})
}

func (h *ScheduleHandler) ListByAgency(c *gin.Context) {
	schedules, err := h.uc.ListByAgency(c.Request.Context(), c.GetString("userID"), c.Param("agencyId"))
	if err != nil {
		respondError(c, h.logger, "list schedules by agency", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": toScheduleResponses(schedules)})
}

func toScheduleResponses(schedules []*domain.Schedule) []scheduleResponse {
	items := make([]scheduleResponse, len(schedules))
	for i, s := range schedules {
		items[i] = toScheduleResponse(s)
	}
	return items
}
