package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/telegram"
	"github.com/taskpilot/backend/repository"
	"github.com/taskpilot/backend/usecase"
)

// Shown per priority group in the digest text; the counts stay exact.
const maxTasksPerGroup = 3

var priorityIcons = map[domain.Priority]string{
	domain.PriorityUrgent: "🔴",
	domain.PriorityHigh:   "🟡",
	domain.PriorityNormal: "🟢",
	domain.PriorityLow:    "⚪",
}

// Digest is one daily summary snapshot.
type Digest struct {
	GeneratedAt time.Time               `json:"generated_at"`
	OpenCounts  map[domain.Priority]int `json:"open_counts"`
	TotalOpen   int                     `json:"total_open"`
	Overdue     int                     `json:"overdue"`
	DueToday    int                     `json:"due_today"`
	Completed   int                     `json:"completed_since_last"`
	Text        string                  `json:"text"`
}

// UseCase builds and delivers the daily digest.
type UseCase struct {
	tasks    repository.TaskRepository
	notifier usecase.Notifier
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent time.Time
}

func New(tasks repository.TaskRepository, notifier usecase.Notifier, location *time.Location, logger *zap.Logger) *UseCase {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		notifier: notifier,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// Generate assembles the digest without sending it.
func (uc *UseCase) Generate(ctx context.Context) (*Digest, error) {
	now := uc.now().In(uc.location)

	grouped, err := uc.tasks.OpenByPriority(ctx)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	since := uc.lastSent
	uc.mu.Unlock()
	if since.IsZero() {
		since = now.Add(-24 * time.Hour)
	}

	completed, err := uc.tasks.CompletedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	digest := &Digest{
		GeneratedAt: now,
		OpenCounts:  make(map[domain.Priority]int, len(domain.Priorities)),
		Completed:   completed,
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, uc.location)
	dayEnd := dayStart.Add(24 * time.Hour)
	for _, p := range domain.Priorities {
		tasks := grouped[p]
		digest.OpenCounts[p] = len(tasks)
		digest.TotalOpen += len(tasks)
		for _, t := range tasks {
			if t.Due == nil {
				continue
			}
			due := t.Due.In(uc.location)
			if due.Before(now) {
				digest.Overdue++
			} else if due.Before(dayEnd) {
				digest.DueToday++
			}
		}
	}

	digest.Text = formatDigest(digest, grouped)
	return digest, nil
}

// Send generates the digest, pushes it to the chat, and advances the
// completed-tasks high-water mark only after a successful delivery.
func (uc *UseCase) Send(ctx context.Context) error {
	digest, err := uc.Generate(ctx)
	if err != nil {
		return err
	}

	if err := uc.notifier.Notify(ctx, digest.Text); err != nil {
		return err
	}

	uc.mu.Lock()
	uc.lastSent = digest.GeneratedAt
	uc.mu.Unlock()

	uc.logger.Info("daily summary sent",
		zap.Int("open", digest.TotalOpen),
		zap.Int("overdue", digest.Overdue),
		zap.Int("completed", digest.Completed),
	)
	return nil
}

func formatDigest(digest *Digest, grouped map[domain.Priority][]domain.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 *Daily Summary* — %s\n\n", digest.GeneratedAt.Format("Mon, 02 Jan")))

	if digest.TotalOpen == 0 {
		b.WriteString("No open tasks. Enjoy the quiet day!\n")
	} else {
		b.WriteString(fmt.Sprintf("Open: %d", digest.TotalOpen))
		if digest.Overdue > 0 {
			b.WriteString(fmt.Sprintf("  •  Overdue: %d", digest.Overdue))
		}
		if digest.DueToday > 0 {
			b.WriteString(fmt.Sprintf("  •  Due today: %d", digest.DueToday))
		}
		b.WriteString("\n\n")

		for _, p := range domain.Priorities {
			tasks := grouped[p]
			if len(tasks) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("%s *%s* (%d)\n", priorityIcons[p], capitalize(string(p)), len(tasks)))
			for i, t := range tasks {
				if i >= maxTasksPerGroup {
					b.WriteString(fmt.Sprintf("  …and %d more\n", len(tasks)-maxTasksPerGroup))
					break
				}
				b.WriteString("  • " + telegram.EscapeMarkdown(truncate(t.Title, 60)))
				if t.Due != nil {
					b.WriteString(fmt.Sprintf(" (due %s)", t.Due.In(digest.GeneratedAt.Location()).Format("02 Jan 15:04")))
				}
				b.WriteString("\n")
			}
		}
	}

	if digest.Completed > 0 {
		b.WriteString(fmt.Sprintf("\n✅ Completed since last summary: %d\n", digest.Completed))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
