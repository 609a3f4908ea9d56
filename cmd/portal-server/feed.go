package main

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/websocket"
)

// appointmentFeed forwards scheduling changes to the doctor and patient of
// the appointment.
type appointmentFeed struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

func (f appointmentFeed) AppointmentChanged(ctx context.Context, change string, a *scheduling.Appointment) {
	data, err := json.Marshal(a)
	if err != nil {
		f.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("encode feed event")
		return
	}
	for _, topic := range []string{
		websocket.Topic(auth.UserDoctor, a.DoctorID),
		websocket.Topic(auth.UserPatient, a.PatientID),
	} {
		err := f.hub.Publish(ctx, websocket.Event{
			Type:      "appointment." + change,
			Topic:     topic,
			ID:        a.ID.String(),
			Timestamp: a.UpdatedAt,
			Data:      data,
		})
		if err != nil {
			f.logger.Error().Err(err).Str("topic", topic).Msg("publish feed event")
		}
	}
}
