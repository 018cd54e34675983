package data

import (
	"github.com/taskops/telegram-bridge/internal/biz/repo"
	"github.com/taskops/telegram-bridge/internal/conf"
	"github.com/taskops/telegram-bridge/telegram"
)

// Repositories contains all repositories
type Repositories struct {
	Messenger repo.Messenger
	Board     repo.Board
	Inference repo.Inference
	Prefs     repo.Prefs
	RunLog    repo.RunLog
}

// NewRepositories creates all repositories
func NewRepositories(tgClient *telegram.Client, cfg *conf.Config) (*Repositories, error) {
	runLog, err := NewRunLogRepo(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Messenger: NewTelegramRepo(tgClient),
		Board:     NewBoardRepo(cfg.BoardAPIURL),
		Inference: NewInferenceRepo(cfg.Ollama.BaseURL),
		Prefs:     NewPrefsRepo(cfg.StateDir, cfg.Ollama.DefaultModel),
		RunLog:    runLog,
	}, nil
}
