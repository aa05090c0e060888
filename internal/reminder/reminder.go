package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/abakirov/taskhub/internal/email"
	"github.com/abakirov/taskhub/internal/metrics"
	"github.com/abakirov/taskhub/internal/repository"
)

const (
	lookahead    = 24 * time.Hour
	sweepTimeout = 2 * time.Minute
)

// Sweeper emails each user a digest of their tasks due in the next 24 hours.
// It runs on a cron schedule in its own process, keeping the request-driven
// API free of background work.
type Sweeper struct {
	tasks  repository.TaskRepository
	sender email.Sender
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSweeper(tasks repository.TaskRepository, sender email.Sender, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		tasks:  tasks,
		sender: sender,
		logger: logger.With("component", "reminder"),
	}
}

// Start schedules the sweep and begins running it. spec uses the standard
// 5-field cron syntax, e.g. "0 * * * *" for hourly.
func (s *Sweeper) Start(spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminder sweep scheduled", "cron", spec)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.Sweep(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("reminder sweep", "error", err)
	}
}

// Sweep sends one digest email per user with tasks due in [now, now+24h).
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	due, err := s.tasks.ListDueBetween(ctx, now, now.Add(lookahead))
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	byEmail := make(map[string][]*repository.DueTask)
	for _, d := range due {
		byEmail[d.Email] = append(byEmail[d.Email], d)
	}

	var failed int
	for addr, tasks := range byEmail {
		subject, body := digestEmail(tasks)
		if err := s.sender.Send(ctx, addr, subject, body); err != nil {
			failed++
			s.logger.Error("send reminder", "to", addr, "error", err)
			continue
		}
		metrics.RemindersSentTotal.Inc()
	}

	s.logger.Info("reminder sweep complete", "users", len(byEmail), "tasks", len(due), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d reminder emails failed", failed, len(byEmail))
	}
	return nil
}

func digestEmail(tasks []*repository.DueTask) (subject, body string) {
	subject = fmt.Sprintf("%d task(s) due in the next 24 hours", len(tasks))

	var b strings.Builder
	b.WriteString("<p>These tasks are coming due:</p><ul>")
	for _, d := range tasks {
		b.WriteString("<li>")
		b.WriteString(d.Task.Title)
		if d.Task.DueAt != nil {
			b.WriteString(" (due ")
			b.WriteString(d.Task.DueAt.Format(time.RFC1123))
			b.WriteString(")")
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return subject, b.String()
}
