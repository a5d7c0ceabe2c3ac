package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/example/studybot/internal/quiz"
	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

// quizSession is a quiz in progress in one chat
type quizSession struct {
	ID        string
	Seq       int
	Subject   string
	Mode      quiz.Mode
	Count     int
	Round     int
	Questions []quiz.Question
	Current   int
	Correct   int
	Answered  int
	AskedAt   time.Time
}

func (s *quizSession) current() (quiz.Question, bool) {
	if s.Current >= len(s.Questions) {
		return quiz.Question{}, false
	}
	return s.Questions[s.Current], true
}

// startQuiz builds a new session for subject and asks its first question
func (b *Bot) startQuiz(ctx context.Context, chatID int64, subject string, count int, mode quiz.Mode) {
	if _, ok := b.catalogs[subject]; !ok {
		b.reply(ctx, chatID, b.unknownSubjectText(subject))
		return
	}

	session := &quizSession{
		ID:      uuid.NewString(),
		Subject: subject,
		Mode:    mode,
		Count:   count,
	}
	if !b.nextRound(ctx, session) {
		b.reply(ctx, chatID, emptySessionText(subject, mode))
		return
	}

	b.mu.Lock()
	b.sessions[chatID] = session
	b.mu.Unlock()

	b.log.InfoContext(ctx, "quiz started",
		slog.String("session_id", session.ID),
		slog.Int("seq", session.Seq),
		slog.String("subject", subject),
		slog.String("mode", string(mode)),
		slog.Int("questions", len(session.Questions)))

	b.askQuestion(ctx, chatID, session)
}

// nextRound numbers a new round and fills it with questions. It reports false when nothing is left to practise.
func (b *Bot) nextRound(ctx context.Context, session *quizSession) bool {
	catalog := b.catalogs[session.Subject]

	seq, err := b.counters.Increment(ctx, sessionSeqCounter)
	if err != nil {
		// without a sequence number history based selection is skipped
		b.log.ErrorContext(ctx, "failed to allocate session sequence", slog.String("error", err.Error()))
		seq = 0
	}

	items := b.builder.BuildSession(quiz.SessionRequest{
		Catalog:      catalog,
		Subject:      session.Subject,
		DesiredCount: session.Count,
		Mode:         session.Mode,
		SessionSeq:   int(seq),
	})
	if len(items) == 0 {
		return false
	}

	session.Seq = int(seq)
	session.Round++
	session.Questions = b.builder.BuildQuestions(items, catalog)
	session.Current = 0
	return true
}

func emptySessionText(subject string, mode quiz.Mode) string {
	switch mode {
	case quiz.ModeWeakOnly:
		return fmt.Sprintf("No weak items in %s. 💪", subject)
	case quiz.ModeSpecialTraining:
		return fmt.Sprintf("Everything in %s is mastered. 🏆", subject)
	case quiz.ModeDueReview:
		return fmt.Sprintf("Nothing of %s is due. 🎉", subject)
	default:
		return fmt.Sprintf("Nothing to practise in %s.", subject)
	}
}

func (b *Bot) askQuestion(ctx context.Context, chatID int64, session *quizSession) {
	q, ok := session.current()
	if !ok {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "❓ %s %d/%d\n\n%s", session.Subject, session.Current+1, len(session.Questions), q.Prompt)
	if q.Item.Reading != "" {
		fmt.Fprintf(&sb, "\n%s", q.Item.Reading)
	}
	if q.Item.Hint != "" {
		fmt.Fprintf(&sb, "\n💡 %s", q.Item.Hint)
	}

	buttons := make([][]MenuButton, 0, len(q.Choices)+1)
	for i, choice := range q.Choices {
		button := answerButton{SessionID: session.ID, Question: session.Answered, Index: i}
		buttons = append(buttons, []MenuButton{{Text: choice, CallbackData: button.data()}})
	}
	buttons = append(buttons, []MenuButton{{Text: "⏹ Stop", CallbackData: callbackStop}})

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = createKeyboard(buttons)
	b.send(ctx, msg)

	session.AskedAt = b.now()
}

// handleAnswer grades the chosen option of the current question and moves on.
// Presses on buttons of other sessions or of questions already answered are dropped.
func (b *Bot) handleAnswer(ctx context.Context, chatID int64, callbackID string, answer answerButton) {
	b.mu.Lock()
	session, ok := b.sessions[chatID]
	b.mu.Unlock()
	if !ok {
		b.answerCallback(ctx, callbackID, "No quiz in progress. Send /quiz to start one.")
		return
	}

	if answer.SessionID != session.ID || answer.Question != session.Answered {
		b.answerCallback(ctx, callbackID, "This question was already answered.")
		return
	}

	index := answer.Index
	q, ok := session.current()
	if !ok || index < 0 || index >= len(q.Choices) {
		b.answerCallback(ctx, callbackID, "")
		return
	}

	correct := q.IsCorrect(index)
	rec, recorded := b.tracker.RecordAnswer(session.Subject, q.Item.ID, correct, sr.AnswerOptions{
		ResponseTime:      b.now().Sub(session.AskedAt),
		BlankCount:        1,
		SessionID:         session.ID,
		SessionSeq:        session.Seq,
		ChosenAnswerText:  q.Choices[index],
		CorrectAnswerText: q.Answer,
	})
	if recorded {
		if err := b.store.Upsert(ctx, rec); err != nil {
			b.log.ErrorContext(ctx, "failed to save mastery record",
				slog.String("subject", rec.Subject),
				slog.String("word_id", rec.WordID),
				slog.String("error", err.Error()))
		}
	}

	session.Answered++
	if correct {
		session.Correct++
		b.answerCallback(ctx, callbackID, "✅")
	} else {
		b.answerCallback(ctx, callbackID, "❌")
	}
	b.reply(ctx, chatID, feedbackText(q, correct, rec, b.now()))

	session.Current++
	if _, more := session.current(); more {
		b.askQuestion(ctx, chatID, session)
		return
	}

	// special training keeps going until everything is mastered
	if session.Mode == quiz.ModeSpecialTraining && b.nextRound(ctx, session) {
		b.reply(ctx, chatID, fmt.Sprintf("🔁 Round %d", session.Round))
		b.askQuestion(ctx, chatID, session)
		return
	}
	b.finishQuiz(ctx, chatID)
}

func feedbackText(q quiz.Question, correct bool, rec models.MasteryRecord, now time.Time) string {
	var sb strings.Builder
	if correct {
		sb.WriteString("✅ Correct!")
	} else {
		fmt.Fprintf(&sb, "❌ Wrong. %s = %s", q.Prompt, q.Answer)
	}
	if q.Item.Example != "" {
		fmt.Fprintf(&sb, "\n📖 %s", q.Item.Example)
	}
	if !rec.NextDueAt.IsZero() {
		fmt.Fprintf(&sb, "\nLevel: %s, next review in %s", rec.Mastery, humanizeDuration(rec.NextDueAt.Sub(now)))
	}
	return sb.String()
}

// humanizeDuration renders d in the largest whole unit among days, hours and minutes
func humanizeDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
}

// finishQuiz ends the chat's quiz, if any, and sends a summary
func (b *Bot) finishQuiz(ctx context.Context, chatID int64) {
	b.mu.Lock()
	session, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()

	if !ok {
		b.reply(ctx, chatID, "No quiz in progress.")
		return
	}

	b.log.InfoContext(ctx, "quiz finished",
		slog.String("session_id", session.ID),
		slog.String("subject", session.Subject),
		slog.Int("answered", session.Answered),
		slog.Int("correct", session.Correct))

	stats := b.tracker.GetStats(session.Subject).WithCatalogSize(len(b.catalogs[session.Subject]))

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏁 %s: %d/%d correct\n\n", session.Subject, session.Correct, session.Answered)
	for _, level := range models.MasteryLevels {
		fmt.Fprintf(&sb, "%s: %d\n", level, stats[level])
	}

	again := callbackQuizPrefix + session.Subject
	if session.Mode == quiz.ModeDueReview {
		again = callbackDuePrefix + session.Subject
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🔁 Again", CallbackData: again}},
	})
	b.send(ctx, msg)
}
