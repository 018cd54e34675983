package domain

import (
	"strings"
)

// Action identifies the handler a resolved command dispatches to.
type Action int

const (
	ActionNone Action = iota
	ActionShowMenu
	ActionHelp
	ActionStatus
	ActionHealth
	ActionTasks
	ActionRecoverPrompt // show the recover/cleanup confirm keyboard
	ActionRecoverRun    // run the recovery script; Arg is the mode
	ActionDeputyPrompt  // show the deputy on/off keyboard
	ActionDeputySet     // Arg is "on" or "off"
	ActionModelPrompt   // show the model picker
	ActionModelSet      // Arg is the model name
	ActionHistory
	ActionChatID
	ActionTriageStart    // begin the awaiting-description flow; Arg is the trigger text
	ActionTriageCancel   // clear the pending flow
	ActionTriageComplete // Arg is the captured description
	ActionAsk            // free text to the inference collaborator; Arg is the prompt
	ActionDismiss        // a confirm keyboard was declined; just acknowledge
	ActionUnsupported
)

// CommandKind tags how the command was expressed.
type CommandKind int

const (
	KindNone CommandKind = iota
	KindFlowPayload
	KindCallback
	KindKeyboardLabel
	KindSlash
	KindFreeText
)

// Command is the tagged-variant result of resolving one update.
type Command struct {
	Kind   CommandKind
	Action Action
	Arg    string
}

// Persistent reply-keyboard labels. These exact strings come back as message
// text when pressed, so the router matches them literally.
const (
	LabelStatus  = "📊 Status"
	LabelHealth  = "🩺 Health"
	LabelTasks   = "🗂 Tasks"
	LabelRecover = "🛠 Recover"
	LabelCleanup = "🧹 Cleanup"
	LabelDeputy  = "🤝 Deputy"
	LabelModel   = "🧠 Model"
	LabelHistory = "🕘 History"
)

var keyboardLabels = map[string]Command{
	LabelStatus:  {Action: ActionStatus},
	LabelHealth:  {Action: ActionHealth},
	LabelTasks:   {Action: ActionTasks},
	LabelRecover: {Action: ActionRecoverPrompt, Arg: "recover"},
	LabelCleanup: {Action: ActionRecoverPrompt, Arg: "cleanup"},
	LabelDeputy:  {Action: ActionDeputyPrompt},
	LabelModel:   {Action: ActionModelPrompt},
	LabelHistory: {Action: ActionHistory},
}

var slashCommands = map[string]Command{
	"/start":   {Action: ActionHelp},
	"/help":    {Action: ActionHelp},
	"/menu":    {Action: ActionShowMenu},
	"/status":  {Action: ActionStatus},
	"/health":  {Action: ActionHealth},
	"/tasks":   {Action: ActionTasks},
	"/recover": {Action: ActionRecoverPrompt, Arg: "recover"},
	"/cleanup": {Action: ActionRecoverPrompt, Arg: "cleanup"},
	"/deputy":  {Action: ActionDeputyPrompt},
	"/model":   {Action: ActionModelPrompt},
	"/history": {Action: ActionHistory},
	"/id":      {Action: ActionChatID},
	"/cancel":  {Action: ActionTriageCancel},
}

// cancelKeywords abort a pending flow instead of feeding it.
var cancelKeywords = map[string]bool{
	"cancel":  true,
	"/cancel": true,
	"取消":      true,
	"算了":      true,
}

// triage trigger phrases: text that hands an issue over for investigation,
// e.g. "交給 Codex 排查" or "let codex investigate".
var triageKeywords = []string{"排查", "investigate", "triage", "诊断", "診斷"}

// Resolve maps an update to exactly one command. flowLive reports whether a
// pending triage flow is active and unexpired; the caller owns that state.
//
// Precedence: pending flow > callback data > keyboard label > slash command >
// free text.
func Resolve(u *Update, flowLive bool) Command {
	if !u.IsCallback() && flowLive {
		return resolveFlowText(u.Text)
	}
	if u.IsCallback() {
		return resolveCallback(u.CallbackData)
	}

	text := strings.TrimSpace(u.Text)
	if cmd, ok := keyboardLabels[text]; ok {
		cmd.Kind = KindKeyboardLabel
		return cmd
	}

	if strings.HasPrefix(text, "/") {
		word, args := splitCommand(text)
		if cmd, ok := slashCommands[normalizeSlashCommand(word)]; ok {
			cmd.Kind = KindSlash
			if cmd.Arg == "" {
				cmd.Arg = args
			}
			return cmd
		}
		// Unknown slash token falls through to free text handling.
	}

	return resolveFreeText(text)
}

func resolveFlowText(text string) Command {
	trimmed := strings.TrimSpace(text)
	if cancelKeywords[strings.ToLower(trimmed)] {
		return Command{Kind: KindFlowPayload, Action: ActionTriageCancel}
	}
	return Command{Kind: KindFlowPayload, Action: ActionTriageComplete, Arg: trimmed}
}

// resolveCallback matches namespaced callback data (`domain:action[:arg]`)
// by exact or prefix match.
func resolveCallback(data string) Command {
	data = strings.TrimSpace(data)
	cmd := Command{Kind: KindCallback, Action: ActionUnsupported}

	switch {
	case data == "deputy:on":
		cmd.Action, cmd.Arg = ActionDeputySet, "on"
	case data == "deputy:off":
		cmd.Action, cmd.Arg = ActionDeputySet, "off"
	case data == "recover:run":
		cmd.Action, cmd.Arg = ActionRecoverRun, "recover"
	case data == "recover:cleanup":
		cmd.Action, cmd.Arg = ActionRecoverRun, "cleanup"
	case data == "recover:cancel":
		cmd.Action = ActionDismiss
	case data == "triage:start":
		cmd.Action = ActionTriageStart
	case data == "triage:cancel":
		cmd.Action = ActionTriageCancel
	case strings.HasPrefix(data, "model:set:"):
		cmd.Action, cmd.Arg = ActionModelSet, strings.TrimPrefix(data, "model:set:")
	}
	return cmd
}

func resolveFreeText(text string) Command {
	if text == "" {
		return Command{Kind: KindFreeText, Action: ActionShowMenu}
	}
	if isTriageTrigger(text) {
		return Command{Kind: KindFreeText, Action: ActionTriageStart, Arg: text}
	}
	return Command{Kind: KindFreeText, Action: ActionAsk, Arg: text}
}

// isTriageTrigger reports whether free text asks to hand an issue to the
// coding agent, e.g. "交給 Codex 排查".
func isTriageTrigger(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "codex") {
		return false
	}
	for _, kw := range triageKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// splitCommand splits "/status extra words" into the command word and the
// rest.
func splitCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
}

// normalizeSlashCommand lowercases the token and strips a "@botname" suffix.
func normalizeSlashCommand(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if i := strings.Index(word, "@"); i > 0 {
		word = word[:i]
	}
	return word
}
