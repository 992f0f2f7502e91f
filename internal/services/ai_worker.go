package services

import (
	"context"
	"sync"

	"concierge-chat/internal/ai"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/repository"
	chaterrors "concierge-chat/pkg/errors"
	"concierge-chat/pkg/logger"
)

const (
	aiHistoryWindow = 10
	aiQueueSize     = 64
)

type aiJob struct {
	conversation domain.Conversation
	content      string
}

// aiWorker runs AI generations detached from the requests that trigger them.
// Submission never blocks; every failure inside the worker is logged and
// stops there. The produced reply re-enters createMessage with the AI role,
// so the trigger predicate in the orchestrator evaluates false for it.
type aiWorker struct {
	responder     ai.Responder
	messages      repository.MessageRepository
	createMessage func(ctx context.Context, in CreateMessageInput) (domain.Message, error)
	logger        *logger.Logger
	jobs          chan aiJob
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

func newAiWorker(
	responder ai.Responder,
	messages repository.MessageRepository,
	createMessage func(ctx context.Context, in CreateMessageInput) (domain.Message, error),
	l *logger.Logger,
) *aiWorker {
	return &aiWorker{
		responder:     responder,
		messages:      messages,
		createMessage: createMessage,
		logger:        l,
		jobs:          make(chan aiJob, aiQueueSize),
		stopChan:      make(chan struct{}),
	}
}

func (w *aiWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *aiWorker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

// Submit enqueues a generation job without blocking the caller.
func (w *aiWorker) Submit(job aiJob) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return chaterrors.ErrQueueFull
	}
}

func (w *aiWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *aiWorker) process(job aiJob) {
	defer func() {
		if r := recover(); r != nil && w.logger != nil {
			w.logger.Errorf("AI worker panic recovered: %v", r)
		}
	}()

	ctx := context.Background()
	conv := job.conversation

	recent, err := w.messages.ListRecent(ctx, conv.ID, aiHistoryWindow)
	if err != nil {
		if w.logger != nil {
			w.logger.Errorf("AI history fetch failed for conversation %s: %s", conv.ID, err)
		}
		return
	}

	reply := w.responder.Generate(ctx, historyTurns(recent), job.content)

	if _, err := w.createMessage(ctx, CreateMessageInput{
		ConversationID: conv.ID,
		SenderID:       domain.SenderIDAI,
		SenderRole:     domain.RoleAI,
		SenderName:     domain.AISenderName,
		Content:        reply,
	}); err != nil && w.logger != nil {
		w.logger.Errorf("AI reply persist failed for conversation %s: %s", conv.ID, err)
	}
}

// historyTurns maps the newest-first history window to chronological
// completion turns. ADMIN and AI senders speak as the assistant; everyone
// else as the user.
func historyTurns(recent []domain.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := "user"
		if recent[i].SenderRole.Privileged() {
			role = "assistant"
		}
		turns = append(turns, ai.Turn{Role: role, Content: recent[i].Content})
	}
	return turns
}
