// Package deadletter publishes reminders that exhausted their delivery attempts.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/domain/notification"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes dead letters to a Kafka topic keyed by appointment id.
type KafkaSink struct {
	writer messageWriter
	log    *logrus.Entry
}

func NewKafkaSink(brokers []string, topic string, log *logrus.Entry) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	log.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("Kafka dead-letter sink configured")
	return &KafkaSink{writer: w, log: log}
}

func (s *KafkaSink) Publish(ctx context.Context, dl notification.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(dl.AppointmentID),
		Value: data,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish dead letter for reminder %s: %w", dl.ReminderID, err)
	}
	s.log.WithFields(logrus.Fields{
		"appointment_id": dl.AppointmentID,
		"reminder_id":    dl.ReminderID,
	}).Debug("Dead letter published")
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink records dead letters in the log only. Used when no broker is configured.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(_ context.Context, dl notification.DeadLetter) error {
	s.log.WithFields(logrus.Fields{
		"appointment_id": dl.AppointmentID,
		"reminder_id":    dl.ReminderID,
		"patient_id":     dl.PatientID,
		"channel":        dl.Channel,
		"attempts":       dl.Attempts,
		"last_error":     dl.LastError,
	}).Warn("Reminder dead-lettered")
	return nil
}

func (s *LogSink) Close() error { return nil }
