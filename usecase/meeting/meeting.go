package meeting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/telegram"
	"github.com/taskpilot/backend/repository"
	"github.com/taskpilot/backend/usecase"
)

// Related lookup needs titles to share meaningful words with the meeting
// summary; these carry no meaning on their own.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "about": {},
	"meeting": {}, "call": {}, "sync": {}, "catch": {}, "chat": {},
	"weekly": {}, "daily": {}, "monthly": {}, "review": {},
}

// LeadWindow is how far ahead of the start time a context message is useful.
// Notifications for events further out are skipped; the provider will ping
// again closer to the start.
const LeadWindow = 30 * time.Minute

// TaskFinder locates open tasks related to a meeting.
type TaskFinder interface {
	FindRelated(ctx context.Context, q repository.RelatedQuery) ([]domain.Task, error)
}

// UseCase builds the pre-meeting context message.
type UseCase struct {
	tasks    TaskFinder
	notifier usecase.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func New(tasks TaskFinder, notifier usecase.Notifier, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{tasks: tasks, notifier: notifier, now: time.Now, logger: logger}
}

// ProcessNotification finds open tasks related to the event and pushes a
// context message. Zero related tasks means zero messages; an empty context
// note is worse than none.
func (uc *UseCase) ProcessNotification(ctx context.Context, event *domain.MeetingEvent) ([]domain.Task, error) {
	if event == nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.Start != nil && event.Start.After(uc.now().Add(LeadWindow)) {
		uc.logger.Debug("meeting too far out, skipping context",
			zap.String("event_id", event.ID),
			zap.Time("start", *event.Start))
		return nil, nil
	}

	query := repository.RelatedQuery{
		Keywords:  keywords(event.Summary),
		Attendees: event.Attendees,
	}
	if len(query.Keywords) == 0 && len(query.Attendees) == 0 {
		return nil, nil
	}

	related, err := uc.tasks.FindRelated(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(related) == 0 {
		uc.logger.Debug("no related tasks for meeting", zap.String("event_id", event.ID))
		return nil, nil
	}

	if err := uc.notifier.Notify(ctx, formatContext(event, related)); err != nil {
		return related, err
	}

	uc.logger.Info("meeting context sent",
		zap.String("event_id", event.ID),
		zap.Int("related", len(related)),
	)
	return related, nil
}

// keywords extracts the meaningful lower-cased words of a meeting summary.
func keywords(summary string) []string {
	fields := strings.FieldsFunc(strings.ToLower(summary), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}

func formatContext(event *domain.MeetingEvent, related []domain.Task) string {
	grouped := make(map[domain.Priority][]domain.Task)
	for _, t := range related {
		grouped[t.Priority] = append(grouped[t.Priority], t)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📌 *Meeting context* — %s\n", telegram.EscapeMarkdown(event.Summary)))
	if event.Start != nil {
		b.WriteString(fmt.Sprintf("Starts %s\n", event.Start.Format("15:04")))
	}
	b.WriteString(fmt.Sprintf("\nOpen tasks that may come up (%d):\n", len(related)))

	for _, priority := range domain.Priorities {
		tasks := grouped[priority]
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
		for _, t := range tasks {
			b.WriteString(fmt.Sprintf("  • %s", telegram.EscapeMarkdown(t.Title)))
			if t.Due != nil {
				b.WriteString(fmt.Sprintf(" (due %s)", t.Due.Format("02 Jan")))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
