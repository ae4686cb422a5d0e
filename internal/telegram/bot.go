// Package telegram runs the interview flow over a Telegram bot: one active
// session per chat, choice options rendered as inline keyboards, free-text
// replies fed straight into the session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/service"
)

const (
	callbackOptionPrefix = "opt_"
	callbackNonAnswer    = "pna"
)

type chatState struct {
	sessionID       uuid.UUID
	followUpPending bool
}

type Bot struct {
	bot        *bot.Bot
	interviews *service.InterviewService
	surveyRef  string

	mu    sync.Mutex
	chats map[int64]*chatState
}

// New creates the bot and registers all handlers. surveyRef names the survey
// every chat interviews against.
func New(token, surveyRef string, interviews *service.InterviewService) (*Bot, error) {
	tb := &Bot{
		interviews: interviews,
		surveyRef:  surveyRef,
		chats:      make(map[int64]*chatState),
	}

	b, err := bot.New(token,
		bot.WithMiddlewares(recoverMiddleware(), loggingMiddleware()),
		bot.WithDefaultHandler(tb.handleText),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	tb.bot = b

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, tb.handleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/end", bot.MatchTypePrefix, tb.handleEnd)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, callbackOptionPrefix, bot.MatchTypePrefix, tb.handleOptionCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, callbackNonAnswer, bot.MatchTypeExact, tb.handleNonAnswerCallback)

	return tb, nil
}

// Start runs long polling until ctx is cancelled.
func (tb *Bot) Start(ctx context.Context) {
	slog.Info("telegram bot starting", "survey", tb.surveyRef)
	tb.bot.Start(ctx)
}

func (tb *Bot) state(chatID int64) *chatState {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.chats[chatID]
}

func (tb *Bot) setState(chatID int64, st *chatState) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if st == nil {
		delete(tb.chats, chatID)
		return
	}
	tb.chats[chatID] = st
}

func (tb *Bot) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	res, err := tb.interviews.Start(ctx, tb.surveyRef, fmt.Sprintf("tg:%d", chatID))
	if err != nil {
		slog.Error("failed to start session", "chat_id", chatID, "error", err)
		tb.send(ctx, chatID, "Sorry, the survey is unavailable right now. Please try again later.", nil)
		return
	}

	tb.setState(chatID, &chatState{sessionID: res.SessionID})

	tb.send(ctx, chatID, fmt.Sprintf(
		"Welcome! You're starting the \"%s\" survey (%d questions).\n"+
			"Answer in your own words, or use the buttons when offered. Send /end to finish early.",
		res.SurveyName, res.TotalQuestions), nil)
	tb.sendQuestion(ctx, chatID, res.FirstQuestion, 1, res.TotalQuestions)
}

func (tb *Bot) handleEnd(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	st := tb.state(chatID)
	if st == nil {
		tb.send(ctx, chatID, "No interview in progress. Send /start to begin.", nil)
		return
	}

	res, err := tb.interviews.End(ctx, st.sessionID, "user_requested")
	if err != nil {
		slog.Error("failed to end session", "chat_id", chatID, "error", err)
		tb.send(ctx, chatID, "Something went wrong ending the interview.", nil)
		return
	}
	tb.setState(chatID, nil)

	tb.send(ctx, chatID, fmt.Sprintf(
		"Interview finished. You answered %d of %d questions.\n\nSummary:\n%s",
		res.QuestionsAnswered, res.TotalQuestions, res.SummaryText), nil)
}

func (tb *Bot) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}
	chatID := update.Message.Chat.ID

	st := tb.state(chatID)
	if st == nil {
		tb.send(ctx, chatID, "No interview in progress. Send /start to begin.", nil)
		return
	}

	kind := service.AnswerPrimary
	if st.followUpPending {
		kind = service.AnswerFollowUp
	}

	tb.submit(ctx, chatID, st, service.SubmitInput{
		SessionID: st.sessionID,
		Kind:      kind,
		Text:      update.Message.Text,
	})
}

func (tb *Bot) handleOptionCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := callbackChatID(update)
	if !ok {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	optionID, err := uuid.Parse(strings.TrimPrefix(update.CallbackQuery.Data, callbackOptionPrefix))
	if err != nil {
		return
	}

	st := tb.state(chatID)
	if st == nil {
		return
	}

	tb.submit(ctx, chatID, st, service.SubmitInput{
		SessionID:        st.sessionID,
		Kind:             service.AnswerPrimary,
		SelectedOptionID: &optionID,
	})
}

func (tb *Bot) handleNonAnswerCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := callbackChatID(update)
	if !ok {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	st := tb.state(chatID)
	if st == nil {
		return
	}

	tb.submit(ctx, chatID, st, service.SubmitInput{
		SessionID: st.sessionID,
		Kind:      service.AnswerPreferNotToAnswer,
	})
}

// submit runs one turn and renders the outcome back into the chat.
func (tb *Bot) submit(ctx context.Context, chatID int64, st *chatState, in service.SubmitInput) {
	res, err := tb.interviews.Submit(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotActive):
			tb.setState(chatID, nil)
			tb.send(ctx, chatID, "This interview has already ended. Send /start to begin a new one.", nil)
		case errors.Is(err, domain.ErrNoFollowUpPending):
			st.followUpPending = false
			tb.send(ctx, chatID, "Please answer the current question.", nil)
		default:
			slog.Error("failed to submit answer", "chat_id", chatID, "error", err)
			tb.send(ctx, chatID, "Something went wrong. Please try again.", nil)
		}
		return
	}

	st.followUpPending = res.Progress.FollowUpPending

	switch res.Reply {
	case service.ReplyFollowUpQuestion:
		tb.send(ctx, chatID, res.FollowupText, nil)
	case service.ReplySurveyQuestion:
		tb.sendQuestion(ctx, chatID, res.Question, res.Progress.CurrentPosition, res.Progress.TotalQuestions)
	case service.ReplyCompleted:
		end, err := tb.interviews.End(ctx, in.SessionID, "completed")
		tb.setState(chatID, nil)
		if err != nil {
			slog.Error("failed to load final summary", "chat_id", chatID, "error", err)
			tb.send(ctx, chatID, "That was the last question. Thank you for participating!", nil)
			return
		}
		tb.send(ctx, chatID, fmt.Sprintf(
			"That was the last question. Thank you for participating!\n\nSummary:\n%s",
			end.SummaryText), nil)
	}
}

func (tb *Bot) sendQuestion(ctx context.Context, chatID int64, q *domain.Question, position, total int) {
	if q == nil {
		return
	}

	text := fmt.Sprintf("Question %d of %d:\n%s", position, total, q.Text)

	var rows [][]models.InlineKeyboardButton
	for _, opt := range q.Options {
		rows = append(rows, ButtonRow(InlineButton(opt.Text, callbackOptionPrefix+opt.ID.String())))
	}
	if q.AllowsNonAnswer {
		rows = append(rows, ButtonRow(InlineButton("Prefer not to answer", callbackNonAnswer)))
	}

	var markup *models.InlineKeyboardMarkup
	if len(rows) > 0 {
		markup = InlineKeyboard(rows...)
	}
	tb.send(ctx, chatID, text, markup)
}

func (tb *Bot) send(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := tb.bot.SendMessage(ctx, params); err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func callbackChatID(update *models.Update) (int64, bool) {
	if update.CallbackQuery == nil || update.CallbackQuery.Message.Message == nil {
		return 0, false
	}
	return update.CallbackQuery.Message.Message.Chat.ID, true
}
