package repo

import (
	"context"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
)

// Button is one inline-keyboard button: a label and the callback data it
// emits when pressed.
type Button struct {
	Text string
	Data string
}

// Messenger sends replies back to the chat platform.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendInlineKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error
	SendReplyKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
	RemoveKeyboard(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// BoardStatus is the task-board's status summary.
type BoardStatus struct {
	OK         bool
	Version    string
	Uptime     string
	DeputyMode bool
	TaskCounts map[string]int
}

// BoardHealth is the task-board's health probe result.
type BoardHealth struct {
	OK       bool
	Services map[string]string // service name -> state
}

// BoardTask is one task summarized for chat replies.
type BoardTask struct {
	ID     string
	Title  string
	Status string
}

// Board is the task-board HTTP collaborator. State-changing calls report
// only the returned ok flag; the bridge does not own their semantics.
type Board interface {
	Status(ctx context.Context) (*BoardStatus, error)
	Health(ctx context.Context) (*BoardHealth, error)
	Tasks(ctx context.Context) ([]BoardTask, error)
	TriggerRecovery(ctx context.Context) (bool, error)
	SetDeputyMode(ctx context.Context, enabled bool) (bool, error)
	CreateTriage(ctx context.Context, description string) (bool, error)
}

// Inference is the local inference collaborator.
type Inference interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Prefs persists small durable user choices, best-effort.
type Prefs interface {
	Load() domain.Preferences
	Save(p domain.Preferences) error
}

// RunLog journals recovery-script runs.
type RunLog interface {
	Record(ctx context.Context, rec domain.RunRecord) error
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)
	Close() error
}

// Clock abstracts time for the components that throttle or expire state.
type Clock func() time.Time
