// Package welcome nudges newly registered users: each user gets at most one
// welcome message, after a configurable delay, and only if they have not
// already written in their support channel. Coordination is purely the
// queue's conditional insert; there is no lock manager.
package welcome

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"health-assistant/internal/messaging"
	"health-assistant/internal/storage"
)

const welcomeText = "Здравствуйте! Я ваш ассистент по вопросам здоровья. " +
	"Могу ответить на вопрос или провести вас по одному из сценариев."

var welcomeChoices = []messaging.Choice{
	{ID: "ask_question", Title: "Задать вопрос"},
	{ID: "start_scenario", Title: "Пройти опрос"},
}

// Messenger is the slice of the support-chat client the worker needs.
type Messenger interface {
	ChannelFor(userID string) string
	GetRecentMessages(ctx context.Context, channelID, userID string) ([]messaging.Message, error)
	Send(ctx context.Context, channelID string, p messaging.Payload) error
}

// Enqueue registers a user for the welcome nudge. Inserting an already
// queued user is a benign no-op.
func Enqueue(ctx context.Context, queue storage.WelcomeQueue, userID string, now time.Time) error {
	inserted, err := queue.InsertIfAbsent(ctx, storage.WelcomeEntry{
		UserID:    userID,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome for %s: %w", userID, err)
	}
	if !inserted {
		log.Debug().Str("user_id", userID).Msg("welcome already queued")
	}
	return nil
}

// Worker runs the periodic scan. Passes never overlap: the cron job is
// wrapped with SkipIfStillRunning and each pass walks entries sequentially.
type Worker struct {
	queue     storage.WelcomeQueue
	messenger Messenger
	delay     time.Duration
	interval  time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewWorker(queue storage.WelcomeQueue, messenger Messenger, delay, interval time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:     queue,
		messenger: messenger,
		delay:     delay,
		interval:  interval,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

func (w *Worker) Start() error {
	spec := fmt.Sprintf("@every %s", w.interval)
	_, err := w.cron.AddFunc(spec, func() {
		if err := w.RunPass(w.ctx); err != nil {
			log.Error().Err(err).Msg("welcome pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule welcome pass: %w", err)
	}
	w.cron.Start()
	log.Info().Dur("interval", w.interval).Dur("delay", w.delay).Msg("welcome worker started")
	return nil
}

// Stop cancels the pass context and waits for a running pass to drain.
func (w *Worker) Stop() {
	w.cancel()
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	log.Info().Msg("welcome worker stopped")
}

// RunPass walks every queue entry once. A failure on one entry is logged and
// counted; the pass continues with the next entry.
func (w *Worker) RunPass(ctx context.Context) error {
	entries, err := w.queue.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan welcome queue: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processEntry(ctx, entry); err != nil {
			log.Error().Err(err).Str("user_id", entry.UserID).
				Int("failed_attempts", entry.FailedAttempts+1).
				Msg("welcome entry failed, left pending")
			if rerr := w.queue.RecordFailure(ctx, entry.UserID); rerr != nil {
				log.Error().Err(rerr).Str("user_id", entry.UserID).Msg("failed to record attempt")
			}
		}
	}
	return nil
}

func (w *Worker) processEntry(ctx context.Context, entry storage.WelcomeEntry) error {
	// The scan is not transactionally filtered, so the processed check stays.
	if entry.Processed {
		return nil
	}
	if w.now().Sub(time.Unix(entry.CreatedAt, 0)) < w.delay {
		return nil
	}

	channelID := w.messenger.ChannelFor(entry.UserID)
	msgs, err := w.messenger.GetRecentMessages(ctx, channelID, entry.UserID)
	if err != nil {
		return fmt.Errorf("failed to check channel %s: %w", channelID, err)
	}

	engaged := false
	for _, m := range msgs {
		if m.SenderID == entry.UserID {
			engaged = true
			break
		}
	}

	if engaged {
		log.Info().Str("user_id", entry.UserID).Msg("user already engaged, welcome suppressed")
	} else {
		err := w.messenger.Send(ctx, channelID, messaging.Payload{
			Timestamp: w.now().Unix(),
			Text:      welcomeText,
			SenderID:  "assistant",
			Choices:   welcomeChoices,
		})
		if err != nil {
			return fmt.Errorf("failed to send welcome to %s: %w", channelID, err)
		}
		log.Info().Str("user_id", entry.UserID).Msg("welcome sent")
	}

	// Done on both branches; only an error above leaves the entry pending.
	if err := w.queue.MarkDone(ctx, entry.UserID); err != nil {
		return fmt.Errorf("failed to mark %s done: %w", entry.UserID, err)
	}
	return nil
}
