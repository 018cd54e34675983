package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
	"github.com/taskops/telegram-bridge/internal/biz/repo"
	"github.com/taskops/telegram-bridge/internal/runner"
)

const helpText = `Task-board control bridge.

/status — board status summary
/health — service health
/tasks — open tasks
/recover — run the recovery script
/cleanup — run the recovery script in cleanup mode
/deputy — toggle dispatch mode
/model — pick the inference model
/history — recent recovery runs
/cancel — abort a pending flow

Anything else is sent to the local model as a prompt.
Mention codex with an investigate keyword (e.g. "交給 Codex 排查") to open a triage flow.`

var menuRows = [][]string{
	{domain.LabelStatus, domain.LabelHealth, domain.LabelTasks},
	{domain.LabelRecover, domain.LabelCleanup, domain.LabelDeputy},
	{domain.LabelModel, domain.LabelHistory},
}

// handle dispatches one resolved command. Handler failures become chat
// messages; they never propagate.
func (b *Bridge) handle(ctx context.Context, u *domain.Update, cmd domain.Command) {
	chatID := u.ChatID

	switch cmd.Action {
	case domain.ActionShowMenu:
		b.sendMenu(ctx, chatID, "Pick an action:")

	case domain.ActionHelp:
		_ = b.messenger.SendReplyKeyboard(ctx, chatID, helpText, menuRows)

	case domain.ActionStatus:
		b.handleStatus(ctx, chatID)

	case domain.ActionHealth:
		b.handleHealth(ctx, chatID)

	case domain.ActionTasks:
		b.handleTasks(ctx, chatID)

	case domain.ActionRecoverPrompt:
		b.handleRecoverPrompt(ctx, chatID, cmd.Arg)

	case domain.ActionRecoverRun:
		b.handleRecoverRun(ctx, chatID, cmd.Arg)

	case domain.ActionDeputyPrompt:
		_ = b.messenger.SendInlineKeyboard(ctx, chatID, "Dispatch mode:", [][]repo.Button{
			{{Text: "✅ Enable", Data: "deputy:on"}, {Text: "⛔️ Disable", Data: "deputy:off"}},
		})

	case domain.ActionDeputySet:
		b.handleDeputySet(ctx, chatID, cmd.Arg == "on")

	case domain.ActionModelPrompt:
		b.handleModelPrompt(ctx, chatID)

	case domain.ActionModelSet:
		b.handleModelSet(ctx, chatID, cmd.Arg)

	case domain.ActionHistory:
		b.handleHistory(ctx, chatID)

	case domain.ActionChatID:
		_ = b.messenger.SendText(ctx, chatID, fmt.Sprintf("chat_id=%d", chatID))

	case domain.ActionTriageStart:
		b.flow.Start(b.now(), cmd.Arg)
		// Drop the menu keyboard while we capture free text.
		_ = b.messenger.RemoveKeyboard(ctx, chatID,
			"Describe the issue in one message and I will open a triage run. Reply \"cancel\" to abort (expires in 5 minutes).")

	case domain.ActionTriageCancel:
		if b.flow.Active {
			b.flow.Clear()
			b.sendMenu(ctx, chatID, "Cancelled.")
		} else {
			_ = b.messenger.SendText(ctx, chatID, "Nothing pending to cancel.")
		}

	case domain.ActionTriageComplete:
		b.handleTriageComplete(ctx, chatID, cmd.Arg)

	case domain.ActionAsk:
		b.handleAsk(ctx, chatID, cmd.Arg)

	case domain.ActionDismiss:
		_ = b.messenger.SendText(ctx, chatID, "Okay, nothing was run.")

	default:
		b.sendMenu(ctx, chatID, "Unsupported command.")
	}
}

func (b *Bridge) sendMenu(ctx context.Context, chatID int64, text string) {
	_ = b.messenger.SendReplyKeyboard(ctx, chatID, text, menuRows)
}

func (b *Bridge) handleStatus(ctx context.Context, chatID int64) {
	status, err := b.board.Status(ctx)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Board status unavailable: "+err.Error())
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Board status\n")
	fmt.Fprintf(&sb, "ok: %v", status.OK)
	if status.Version != "" {
		fmt.Fprintf(&sb, " · v%s", status.Version)
	}
	if status.Uptime != "" {
		fmt.Fprintf(&sb, " · up %s", status.Uptime)
	}
	fmt.Fprintf(&sb, "\ndeputy mode: %v", status.DeputyMode)
	if len(status.TaskCounts) > 0 {
		keys := make([]string, 0, len(status.TaskCounts))
		for k := range status.TaskCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\ntasks:")
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%d", k, status.TaskCounts[k])
		}
	}
	_ = b.messenger.SendText(ctx, chatID, sb.String())
}

func (b *Bridge) handleHealth(ctx context.Context, chatID int64) {
	health, err := b.board.Health(ctx)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Health check failed: "+err.Error())
		return
	}

	var sb strings.Builder
	if health.OK {
		sb.WriteString("🩺 All services healthy")
	} else {
		sb.WriteString("🩺 Degraded")
	}
	keys := make([]string, 0, len(health.Services))
	for k := range health.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", k, health.Services[k])
	}
	_ = b.messenger.SendText(ctx, chatID, sb.String())
}

func (b *Bridge) handleTasks(ctx context.Context, chatID int64) {
	tasks, err := b.board.Tasks(ctx)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Task list unavailable: "+err.Error())
		return
	}
	if len(tasks) == 0 {
		_ = b.messenger.SendText(ctx, chatID, "No open tasks.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 %d task(s)\n", len(tasks))
	for i, t := range tasks {
		if i >= 10 {
			fmt.Fprintf(&sb, "… and %d more", len(tasks)-i)
			break
		}
		fmt.Fprintf(&sb, "[%s] %s\n", t.Status, t.Title)
	}
	_ = b.messenger.SendInlineKeyboard(ctx, chatID, strings.TrimSpace(sb.String()), [][]repo.Button{
		{{Text: "🔎 Triage an issue", Data: "triage:start"}},
	})
}

func (b *Bridge) handleRecoverPrompt(ctx context.Context, chatID int64, mode string) {
	if mode == "" {
		mode = "recover"
	}
	data := "recover:run"
	if mode == "cleanup" {
		data = "recover:cleanup"
	}
	_ = b.messenger.SendInlineKeyboard(ctx, chatID,
		fmt.Sprintf("Run the recovery script in %s mode?", mode),
		[][]repo.Button{
			{{Text: "✅ Run", Data: data}},
			{{Text: "❌ Cancel", Data: "recover:cancel"}},
		})
}

func (b *Bridge) handleRecoverRun(ctx context.Context, chatID int64, mode string) {
	if mode == "" {
		mode = "recover"
	}

	err := b.jobs.Start(mode)
	switch {
	case errors.Is(err, runner.ErrBusy):
		// Leave lastRunChat alone: the running job still reports to whoever
		// started it.
		_ = b.messenger.SendText(ctx, chatID, "A recovery run is already in progress.")
	case err != nil:
		// No local workspace or the script would not spawn. Ask the board to
		// run recovery on its side instead.
		ok, remoteErr := b.board.TriggerRecovery(ctx)
		if remoteErr != nil || !ok {
			_ = b.messenger.SendText(ctx, chatID, "Could not start recovery: "+err.Error())
			return
		}
		_ = b.messenger.SendText(ctx, chatID, "🛠 Local script unavailable; recovery triggered on the board instead.")
	default:
		b.runMu.Lock()
		b.lastRunChat = chatID
		b.runMu.Unlock()
		_ = b.messenger.SendText(ctx, chatID, fmt.Sprintf("🛠 Recovery started (mode=%s). I will report when it finishes.", mode))
	}
}

// handleRunComplete fires from the runner's goroutine when the script exits,
// normally or killed. It reports the summary and journals the run.
func (b *Bridge) handleRunComplete(res runner.Result) {
	ctx := context.Background()

	b.runMu.Lock()
	chatID := b.lastRunChat
	b.runMu.Unlock()

	record := domain.RunRecord{
		Mode:       res.Mode,
		ExitCode:   res.ExitCode,
		Elapsed:    res.Elapsed,
		OutputTail: res.OutputTail,
		Killed:     res.Killed,
		StartedAt:  res.StartedAt,
	}
	if err := b.runLog.Record(ctx, record); err != nil {
		fmt.Printf("[Bridge] Failed to journal run: %v\n", err)
	}

	if chatID == 0 {
		return
	}
	_ = b.messenger.SendText(ctx, chatID, formatRunSummary(res))
}

func formatRunSummary(res runner.Result) string {
	var sb strings.Builder
	if res.Killed {
		fmt.Fprintf(&sb, "⏱ Recovery killed after %.0fs (mode=%s, hard timeout)", res.Elapsed.Seconds(), res.Mode)
	} else if res.ExitCode == 0 {
		fmt.Fprintf(&sb, "✅ Recovery finished (mode=%s, %.0fs)", res.Mode, res.Elapsed.Seconds())
	} else {
		fmt.Fprintf(&sb, "❌ Recovery failed (mode=%s, exit=%d, %.0fs)", res.Mode, res.ExitCode, res.Elapsed.Seconds())
	}
	if tail := lastLines(res.OutputTail, 10); tail != "" {
		sb.WriteString("\n\n")
		sb.WriteString(tail)
	}
	return sb.String()
}

// lastLines returns at most n trailing non-empty lines.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}

func (b *Bridge) handleDeputySet(ctx context.Context, chatID int64, enabled bool) {
	ok, err := b.board.SetDeputyMode(ctx, enabled)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Dispatch mode change failed: "+err.Error())
		return
	}
	if !ok {
		_ = b.messenger.SendText(ctx, chatID, "Board declined the dispatch mode change.")
		return
	}
	if enabled {
		_ = b.messenger.SendText(ctx, chatID, "🤝 Dispatch mode enabled.")
	} else {
		_ = b.messenger.SendText(ctx, chatID, "Dispatch mode disabled.")
	}
}

func (b *Bridge) handleModelPrompt(ctx context.Context, chatID int64) {
	models, err := b.inference.ListModels(ctx)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Could not list models: "+err.Error())
		return
	}
	if len(models) == 0 {
		_ = b.messenger.SendText(ctx, chatID, "No local models available.")
		return
	}

	var rows [][]repo.Button
	for _, m := range models {
		label := m
		if m == b.model {
			label = "• " + m
		}
		rows = append(rows, []repo.Button{{Text: label, Data: "model:set:" + m}})
	}
	_ = b.messenger.SendInlineKeyboard(ctx, chatID, "Pick the inference model:", rows)
}

func (b *Bridge) handleModelSet(ctx context.Context, chatID int64, model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		_ = b.messenger.SendText(ctx, chatID, "Missing model name.")
		return
	}
	b.model = model
	if err := b.prefs.Save(domain.Preferences{Model: model, SavedAt: b.now()}); err != nil {
		// Preferences are a convenience; the in-memory choice still applies.
		fmt.Printf("[Bridge] Failed to persist model preference: %v\n", err)
	}
	_ = b.messenger.SendText(ctx, chatID, "🧠 Model set to "+model)
}

func (b *Bridge) handleHistory(ctx context.Context, chatID int64) {
	records, err := b.runLog.Recent(ctx, 5)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "History unavailable: "+err.Error())
		return
	}
	if len(records) == 0 {
		_ = b.messenger.SendText(ctx, chatID, "No recovery runs recorded yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🕘 Recent recovery runs\n")
	for _, rec := range records {
		outcome := fmt.Sprintf("exit=%d", rec.ExitCode)
		if rec.Killed {
			outcome = "killed"
		}
		fmt.Fprintf(&sb, "%s · %s · %s · %.0fs\n",
			rec.StartedAt.Format("01-02 15:04"), rec.Mode, outcome, rec.Elapsed.Seconds())
	}
	_ = b.messenger.SendText(ctx, chatID, strings.TrimSpace(sb.String()))
}

func (b *Bridge) handleTriageComplete(ctx context.Context, chatID int64, captured string) {
	trigger := b.flow.Context
	b.flow.Clear()

	description := captured
	if trigger != "" && trigger != captured {
		description = captured + "\n\n(reported via: " + trigger + ")"
	}

	ok, err := b.board.CreateTriage(ctx, description)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Triage creation failed: "+err.Error())
		return
	}
	if !ok {
		_ = b.messenger.SendText(ctx, chatID, "Board declined the triage request.")
		return
	}
	b.sendMenu(ctx, chatID, "📋 Triage run created, Codex is on it.")
}

func (b *Bridge) handleAsk(ctx context.Context, chatID int64, prompt string) {
	reply, err := b.inference.Generate(ctx, b.model, prompt)
	if err != nil {
		_ = b.messenger.SendText(ctx, chatID, "Inference failed: "+err.Error())
		return
	}
	if reply == "" {
		reply = "(no response)"
	}
	_ = b.messenger.SendText(ctx, chatID, reply)
}
