package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/app"
	"appointment_reminders/internal/domain/appointment"
)

const dateLayout = "2006-01-02"

// AppointmentScheduler stores a new appointment together with its reminders.
type AppointmentScheduler interface {
	Schedule(ctx context.Context, a *appointment.Appointment) error
}

type createAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" binding:"required"`
	PatientID string `json:"patient_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Type      string `json:"type"`
	Notes     string `json:"notes"`
}

type appointmentResponse struct {
	ID        string                  `json:"id"`
	Date      string                  `json:"date"`
	StartTime string                  `json:"start_time"`
	EndTime   string                  `json:"end_time"`
	Status    appointment.Status      `json:"status"`
	Type      appointment.Type        `json:"type"`
	Reminders []*appointment.Reminder `json:"reminders"`
}

func createAppointment(svc AppointmentScheduler, logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAppointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		a := &appointment.Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Type:      appointment.Type(req.Type),
			Notes:     req.Notes,
		}
		if err := svc.Schedule(c.Request.Context(), a); err != nil {
			if errors.Is(err, app.ErrInvalidAppointment) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.WithError(err).Error("Failed to schedule appointment")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not schedule appointment"})
			return
		}

		c.JSON(http.StatusCreated, appointmentResponse{
			ID:        a.ID,
			Date:      a.Date.Format(dateLayout),
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
			Status:    a.Status,
			Type:      a.Type,
			Reminders: a.Reminders,
		})
	}
}
