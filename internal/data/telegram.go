package data

import (
	"context"

	"github.com/taskops/telegram-bridge/internal/biz/repo"
	"github.com/taskops/telegram-bridge/telegram"
)

// telegramRepo implements the Messenger repository over the Bot API client
type telegramRepo struct {
	client *telegram.Client
}

// NewTelegramRepo creates a new Telegram-backed messenger
func NewTelegramRepo(client *telegram.Client) repo.Messenger {
	return &telegramRepo{client: client}
}

func (r *telegramRepo) SendText(ctx context.Context, chatID int64, text string) error {
	return r.client.SendMessage(ctx, chatID, text, nil)
}

func (r *telegramRepo) SendInlineKeyboard(ctx context.Context, chatID int64, text string, rows [][]repo.Button) error {
	markup := telegram.InlineKeyboardMarkup{}
	for _, row := range rows {
		var btns []telegram.InlineKeyboardButton
		for _, b := range row {
			btns = append(btns, telegram.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, btns)
	}
	return r.client.SendMessage(ctx, chatID, text, &telegram.SendOptions{ReplyMarkup: markup})
}

func (r *telegramRepo) SendReplyKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error {
	markup := telegram.ReplyKeyboardMarkup{ResizeKeyboard: true, IsPersistent: true}
	for _, row := range rows {
		var btns []telegram.KeyboardButton
		for _, label := range row {
			btns = append(btns, telegram.KeyboardButton{Text: label})
		}
		markup.Keyboard = append(markup.Keyboard, btns)
	}
	return r.client.SendMessage(ctx, chatID, text, &telegram.SendOptions{ReplyMarkup: markup})
}

func (r *telegramRepo) RemoveKeyboard(ctx context.Context, chatID int64, text string) error {
	return r.client.SendMessage(ctx, chatID, text, &telegram.SendOptions{
		ReplyMarkup: telegram.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
}

func (r *telegramRepo) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return r.client.AnswerCallbackQuery(ctx, callbackID, text)
}
