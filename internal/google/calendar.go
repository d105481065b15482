package google

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/config"
)

// CalendarService wraps the Google Calendar API for the assistant's calendar.
type CalendarService struct {
	srv        *calendar.Service
	calendarID string
	logger     *zap.Logger
}

// NewCalendarService builds the service from stored service credentials.
func NewCalendarService(ctx context.Context, cfg config.CalendarConfig, logger *zap.Logger) (*CalendarService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ts, err := tokenSource(ctx, cfg.CredentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("calendar credentials: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &CalendarService{srv: srv, calendarID: calendarID, logger: logger}, nil
}

// InsertEvent creates a calendar event from a draft. The draft must carry a
// start time; callers validate that before reaching here.
func (s *CalendarService) InsertEvent(ctx context.Context, draft *domain.EventDraft) (*domain.MeetingEvent, error) {
	if draft == nil || draft.Start == nil {
		return nil, domain.NewError(domain.ErrCodeInvalid, "event draft is missing a start time")
	}

	duration := draft.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	end := draft.Start.Add(time.Duration(duration) * time.Minute)

	event := &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Start:       &calendar.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}

	created, err := s.srv.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar insert: %w", err)
	}

	s.logger.Info("calendar event created",
		zap.String("event_id", created.Id),
		zap.String("summary", created.Summary),
	)
	return toMeetingEvent(created), nil
}

// ListWindow returns events starting inside [from, to).
func (s *CalendarService) ListWindow(ctx context.Context, from, to time.Time) ([]domain.MeetingEvent, error) {
	resp, err := s.srv.Events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar list: %w", err)
	}

	events := make([]domain.MeetingEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, *toMeetingEvent(item))
	}
	return events, nil
}

func toMeetingEvent(event *calendar.Event) *domain.MeetingEvent {
	out := &domain.MeetingEvent{
		ID:      event.Id,
		Summary: event.Summary,
	}
	if event.Start != nil && event.Start.DateTime != "" {
		if start, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
			out.Start = &start
		}
	}
	for _, attendee := range event.Attendees {
		if attendee.Email != "" {
			out.Attendees = append(out.Attendees, attendee.Email)
		}
	}
	return out
}
