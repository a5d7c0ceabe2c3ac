package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/pkg/models"
)

// Constants for callback data
const (
	callbackAnswerPrefix = "ans:"
	callbackQuizPrefix   = "quiz:"
	callbackDuePrefix    = "due:"
	callbackStop         = "stop"
)

const quizUsage = "Usage: /quiz <subject> [count] [normal|weak|special|due]"

const helpText = `Commands:
/quiz <subject> [count] [normal|weak|special|due] - start a quiz
/due <subject> - items due for review
/weak <subject> - items you keep missing
/stats [subject] - progress per mastery level
/stop - end the current quiz
/reset <subject|all> - forget progress`

// handleCommand dispatches bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.Fields(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		b.handleStart(ctx, chatID)
	case "quiz":
		b.handleQuizCommand(ctx, chatID, args)
	case "due":
		b.handleDueCommand(ctx, chatID, args)
	case "weak":
		b.handleWeakCommand(ctx, chatID, args)
	case "stats":
		b.handleStatsCommand(ctx, chatID, args)
	case "stop":
		b.finishQuiz(ctx, chatID)
	case "reset":
		b.handleResetCommand(ctx, chatID, args)
	default:
		b.reply(ctx, chatID, "Unknown command. Use /help to see the commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	var sb strings.Builder
	sb.WriteString("Welcome to the study bot! 🎓\n\n")
	sb.WriteString(helpText)

	subjects := b.subjects()
	if len(subjects) == 0 {
		sb.WriteString("\n\nNo subjects are loaded yet.")
		b.reply(ctx, chatID, sb.String())
		return
	}

	sb.WriteString("\n\nSubjects: " + strings.Join(subjects, ", "))
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = createKeyboard(b.subjectButtons())
	b.send(ctx, msg)
}

// subjectButtons returns one quiz button per subject, two per row
func (b *Bot) subjectButtons() [][]MenuButton {
	var rows [][]MenuButton
	var row []MenuButton
	for _, subject := range b.subjects() {
		row = append(row, MenuButton{Text: "🎯 " + subject, CallbackData: callbackQuizPrefix + subject})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// handleQuizCommand parses /quiz <subject> [count] [mode]
func (b *Bot) handleQuizCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, quizUsage)
		return
	}
	subject := args[0]
	count := b.cfg.DefaultQuestions
	mode := quiz.ModeNormal

	for _, arg := range args[1:] {
		if n, err := strconv.Atoi(arg); err == nil {
			if n < 0 {
				b.reply(ctx, chatID, "The question count can't be negative.")
				return
			}
			count = n
			continue
		}
		parsed, err := quiz.ParseMode(strings.ToLower(arg))
		if err != nil {
			b.reply(ctx, chatID, fmt.Sprintf("Unknown mode %q.\n%s", arg, quizUsage))
			return
		}
		mode = parsed
	}

	b.startQuiz(ctx, chatID, subject, count, mode)
}

func (b *Bot) handleDueCommand(ctx context.Context, chatID int64, args []string) {
	subject, catalog, ok := b.subjectArg(ctx, chatID, args)
	if !ok {
		return
	}

	due := b.tracker.GetReviewCandidates(catalog, subject, false)
	dueSoon := b.tracker.GetReviewCandidates(catalog, subject, true)

	if len(dueSoon) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Nothing of %s is due. 🎉", subject))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s: %d due now, %d more within %s\n\n",
		subject, len(due), len(dueSoon)-len(due), b.tracker.Policy().DueSoonWindow)
	writeItemList(&sb, dueSoon, b.cfg.ListLimit)

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🎯 Review now", CallbackData: callbackDuePrefix + subject}},
	})
	b.send(ctx, msg)
}

func (b *Bot) handleWeakCommand(ctx context.Context, chatID int64, args []string) {
	subject, catalog, ok := b.subjectArg(ctx, chatID, args)
	if !ok {
		return
	}

	weak := b.builder.Filter(catalog, subject, quiz.Filters{}, quiz.ModeWeakOnly)
	if len(weak) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("No weak items in %s. 💪", subject))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ %s: %d weak items\n\n", subject, len(weak))
	writeItemList(&sb, b.tracker.SortByPriority(weak, subject), b.cfg.ListLimit)
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64, args []string) {
	subjects := b.subjects()
	if len(args) > 0 {
		if _, ok := b.catalogs[args[0]]; !ok {
			b.reply(ctx, chatID, b.unknownSubjectText(args[0]))
			return
		}
		subjects = []string{args[0]}
	}
	if len(subjects) == 0 {
		b.reply(ctx, chatID, "No subjects are loaded yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Progress\n")
	for _, subject := range subjects {
		catalog := b.catalogs[subject]
		stats := b.tracker.GetStats(subject).WithCatalogSize(len(catalog))
		fmt.Fprintf(&sb, "\n%s (%d items)\n", subject, len(catalog))
		for _, level := range models.MasteryLevels {
			fmt.Fprintf(&sb, "  %s: %d\n", level, stats[level])
		}
	}
	b.reply(ctx, chatID, sb.String())
}

// handleResetCommand forgets the progress of one subject, or of all of them
func (b *Bot) handleResetCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) > 0 && args[0] == "all" {
		if err := b.store.DeleteAll(ctx); err != nil {
			b.log.ErrorContext(ctx, "failed to delete mastery records", slog.String("error", err.Error()))
			b.reply(ctx, chatID, "Sorry, the progress could not be reset.")
			return
		}
		b.tracker.Reset()
		b.reply(ctx, chatID, "🧹 All progress has been reset.")
		return
	}

	subject, _, ok := b.subjectArg(ctx, chatID, args)
	if !ok {
		return
	}
	if err := b.store.Save(ctx, subject, nil); err != nil {
		b.log.ErrorContext(ctx, "failed to reset subject",
			slog.String("subject", subject), slog.String("error", err.Error()))
		b.reply(ctx, chatID, "Sorry, the progress could not be reset.")
		return
	}
	b.tracker.Load(subject, nil)
	b.reply(ctx, chatID, fmt.Sprintf("🧹 Progress of %s has been reset.", subject))
}

// subjectArg resolves the subject named by the first argument
func (b *Bot) subjectArg(ctx context.Context, chatID int64, args []string) (string, []models.VocabularyItem, bool) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Please name a subject: "+strings.Join(b.subjects(), ", "))
		return "", nil, false
	}
	catalog, ok := b.catalogs[args[0]]
	if !ok {
		b.reply(ctx, chatID, b.unknownSubjectText(args[0]))
		return "", nil, false
	}
	return args[0], catalog, true
}

func (b *Bot) unknownSubjectText(subject string) string {
	return fmt.Sprintf("Unknown subject %q. Available: %s", subject, strings.Join(b.subjects(), ", "))
}

func writeItemList(sb *strings.Builder, items []models.VocabularyItem, limit int) {
	for i, item := range items {
		if limit > 0 && i >= limit {
			fmt.Fprintf(sb, "…and %d more\n", len(items)-limit)
			break
		}
		fmt.Fprintf(sb, "• %s - %s\n", item.Term, item.Meaning)
	}
}

// handleCallbackQuery handles inline keyboard presses
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		b.answerCallback(ctx, callback.ID, "")
		return
	}
	chatID := callback.Message.Chat.ID

	switch {
	case strings.HasPrefix(callback.Data, callbackAnswerPrefix):
		answer, ok := parseAnswerData(callback.Data)
		if !ok {
			b.answerCallback(ctx, callback.ID, "")
			return
		}
		b.handleAnswer(ctx, chatID, callback.ID, answer)
	case strings.HasPrefix(callback.Data, callbackQuizPrefix):
		b.answerCallback(ctx, callback.ID, "")
		b.startQuiz(ctx, chatID, strings.TrimPrefix(callback.Data, callbackQuizPrefix), b.cfg.DefaultQuestions, quiz.ModeNormal)
	case strings.HasPrefix(callback.Data, callbackDuePrefix):
		b.answerCallback(ctx, callback.ID, "")
		b.startQuiz(ctx, chatID, strings.TrimPrefix(callback.Data, callbackDuePrefix), b.cfg.DefaultQuestions, quiz.ModeDueReview)
	case callback.Data == callbackStop:
		b.answerCallback(ctx, callback.ID, "")
		b.finishQuiz(ctx, chatID)
	default:
		b.answerCallback(ctx, callback.ID, "")
	}
}

// answerButton identifies the choice pressed on one question of one session
type answerButton struct {
	SessionID string
	Question  int // answers given in the session before this question was shown
	Index     int
}

func (a answerButton) data() string {
	return fmt.Sprintf("%s%s:%d:%d", callbackAnswerPrefix, a.SessionID, a.Question, a.Index)
}

func parseAnswerData(data string) (answerButton, bool) {
	parts := strings.Split(strings.TrimPrefix(data, callbackAnswerPrefix), ":")
	if len(parts) != 3 || parts[0] == "" {
		return answerButton{}, false
	}
	question, err := strconv.Atoi(parts[1])
	if err != nil {
		return answerButton{}, false
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		return answerButton{}, false
	}
	return answerButton{SessionID: parts[0], Question: question, Index: index}, true
}
