package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/telegram"
	"github.com/taskpilot/backend/repository"
)

// Shown per priority group in /list replies; counts stay exact.
const maxTasksPerList = 5

var priorityIcons = map[domain.Priority]string{
	domain.PriorityUrgent: "🔴",
	domain.PriorityHigh:   "🟡",
	domain.PriorityNormal: "🟢",
	domain.PriorityLow:    "⚪",
}

const helpText = `👋 I track your tasks from email, calendar and chat.

Commands:
/add <text> — add a task (I will pick a priority and due date)
/done <id> — mark a task done
/list — open tasks by priority
/calendar <text> — create a calendar event

Priorities: 🔴 urgent  🟡 high  🟢 normal  ⚪ low`

// Tasks is the slice of the task usecase the chat processor needs.
type Tasks interface {
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)
	MarkDone(ctx context.Context, id int64) (*domain.Task, error)
	OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error)
}

// Analyzer classifies free-form command arguments.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (*domain.Analysis, error)
	AnalyzeEvent(ctx context.Context, text string, now time.Time) (*domain.EventDraft, error)
}

// Calendar creates events for /calendar.
type Calendar interface {
	InsertEvent(ctx context.Context, draft *domain.EventDraft) (*domain.MeetingEvent, error)
}

// Sender delivers replies back to the chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Update is the subset of a Telegram webhook payload the processor reads.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Processor dispatches chat commands. It is stateless; every update carries
// everything needed to reply.
type Processor struct {
	tasks    Tasks
	analyzer Analyzer
	calendar Calendar
	sender   Sender
	dedup    repository.DedupCache
	now      func() time.Time
	logger   *zap.Logger
}

func New(tasks Tasks, analyzer Analyzer, calendar Calendar, sender Sender, dedup repository.DedupCache, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		tasks:    tasks,
		analyzer: analyzer,
		calendar: calendar,
		sender:   sender,
		dedup:    dedup,
		now:      time.Now,
		logger:   logger,
	}
}

// HandleUpdate processes one webhook delivery. Redelivered update ids are
// dropped silently.
func (p *Processor) HandleUpdate(ctx context.Context, payload []byte) error {
	var update Update
	if err := json.Unmarshal(payload, &update); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed chat update", err)
	}
	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		return nil
	}

	if p.dedup != nil {
		seen, err := p.dedup.Seen(ctx, fmt.Sprintf("telegram:%d", update.UpdateID))
		if err != nil {
			p.logger.Warn("chat dedup check failed", zap.Error(err))
		} else if seen {
			return nil
		}
	}

	chatID := update.Message.Chat.ID
	var userID int64
	if update.Message.From != nil {
		userID = update.Message.From.ID
	}

	reply := p.dispatch(ctx, userID, strings.TrimSpace(update.Message.Text))
	if reply == "" {
		return nil
	}
	return p.sender.SendMessage(ctx, chatID, reply)
}

func (p *Processor) dispatch(ctx context.Context, userID int64, text string) string {
	command, args := splitCommand(text)
	switch command {
	case "/start", "/help":
		return helpText
	case "/add":
		return p.handleAdd(ctx, userID, args)
	case "/done":
		return p.handleDone(ctx, args)
	case "/list":
		return p.handleList(ctx)
	case "/calendar":
		return p.handleCalendar(ctx, args)
	default:
		return "I did not catch that. Try /help for the command list."
	}
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// Strip the @botname suffix of group-chat commands.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	if len(parts) == 2 {
		return command, strings.TrimSpace(parts[1])
	}
	return command, ""
}

func (p *Processor) handleAdd(ctx context.Context, userID int64, args string) string {
	if args == "" {
		return "Usage: /add buy groceries tomorrow"
	}

	source := fmt.Sprintf("telegram_user_%d", userID)
	candidates := p.classify(ctx, args)

	var created []*domain.Task
	for _, candidate := range candidates {
		task := &domain.Task{
			Title:    candidate.Title,
			Due:      candidate.Due,
			Status:   domain.StatusOpen,
			Source:   source,
			Priority: candidate.Priority,
		}
		stored, err := p.tasks.CreateTask(ctx, task)
		if err != nil {
			p.logger.Error("chat task create failed", zap.Error(err))
			return "Could not save that task, please try again."
		}
		created = append(created, stored)
	}
	if len(created) == 0 {
		return "Could not make a task out of that, please try again."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Added %d task(s):\n", len(created)))
	for _, t := range created {
		b.WriteString(fmt.Sprintf("%s #%d %s\n", priorityIcons[t.Priority], t.ID, telegram.EscapeMarkdown(t.Title)))
	}
	return b.String()
}

// classify runs the analysis adapter over the /add text; a degraded or empty
// result falls back to a single plain task.
func (p *Processor) classify(ctx context.Context, text string) []domain.TaskCandidate {
	analysis, err := p.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		p.logger.Warn("chat analysis degraded", zap.Error(err))
	}
	if analysis != nil && len(analysis.Tasks) > 0 {
		return analysis.Tasks
	}
	return []domain.TaskCandidate{{Title: text, Priority: domain.PriorityNormal}}
}

func (p *Processor) handleDone(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return "Usage: /done 42"
	}

	task, err := p.tasks.MarkDone(ctx, id)
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return fmt.Sprintf("Task #%d not found.", id)
	case errors.Is(err, domain.ErrTaskAlreadyDone):
		return fmt.Sprintf("Task #%d is already done.", id)
	case err != nil:
		p.logger.Error("chat mark done failed", zap.Int64("id", id), zap.Error(err))
		return "Could not update that task, please try again."
	}
	return fmt.Sprintf("✅ Done: %s", telegram.EscapeMarkdown(task.Title))
}

func (p *Processor) handleList(ctx context.Context) string {
	grouped, err := p.tasks.OpenByPriority(ctx)
	if err != nil {
		p.logger.Error("chat list failed", zap.Error(err))
		return "Could not load your tasks, please try again."
	}

	total := 0
	var b strings.Builder
	for _, priority := range domain.Priorities {
		tasks := grouped[priority]
		if len(tasks) == 0 {
			continue
		}
		total += len(tasks)
		b.WriteString(fmt.Sprintf("%s *%s* (%d)\n", priorityIcons[priority], strings.ToUpper(string(priority)), len(tasks)))
		for i, t := range tasks {
			if i >= maxTasksPerList {
				b.WriteString(fmt.Sprintf("  …and %d more\n", len(tasks)-maxTasksPerList))
				break
			}
			b.WriteString(fmt.Sprintf("  #%d %s", t.ID, telegram.EscapeMarkdown(t.Title)))
			if t.Source != "" {
				b.WriteString(fmt.Sprintf(" · %s", telegram.EscapeMarkdown(t.Source)))
			}
			if t.Due != nil {
				b.WriteString(fmt.Sprintf(" · due %s", t.Due.Format("02 Jan 15:04")))
			}
			b.WriteString("\n")
		}
	}

	if total == 0 {
		return "No open tasks. 🎉"
	}
	return fmt.Sprintf("📋 Open tasks: %d\n\n%s", total, b.String())
}

func (p *Processor) handleCalendar(ctx context.Context, args string) string {
	if args == "" {
		return "Usage: /calendar lunch with Ana friday 1pm"
	}

	draft, err := p.analyzer.AnalyzeEvent(ctx, args, p.now())
	if err != nil {
		p.logger.Warn("chat event analysis failed", zap.Error(err))
	}
	if draft == nil || draft.Start == nil {
		return "I could not find a date or time in that. Try something like \"/calendar dentist tuesday 10am\" or \"/calendar demo 2026-09-12 15:00\"."
	}
	if draft.Title == "" {
		draft.Title = args
	}

	event, err := p.calendar.InsertEvent(ctx, draft)
	if err != nil {
		p.logger.Error("chat calendar insert failed", zap.Error(err))
		return "Could not create the event, please try again."
	}
	return fmt.Sprintf("📅 Created *%s* on %s.",
		telegram.EscapeMarkdown(event.Summary),
		draft.Start.Format("Mon, 02 Jan 15:04"))
}
