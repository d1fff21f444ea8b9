package agent

import (
	"fmt"
	"strings"
)

// System prompts per dialect. Each one pins the reply grammar its parser
// expects; a mismatched prompt yields unparseable replies.
const glmSystemPrompt = `You are a phone-use agent. You are given the user's goal and a
screenshot of the current screen. Reply with your reasoning followed by exactly one call:

do(action="Tap", coordinate=[x, y])
do(action="LongPress", coordinate=[x, y])
do(action="Swipe", coordinate=[x1, y1], coordinate2=[x2, y2])
do(action="Type", text="...")
do(action="Launch", app="...")
do(action="Back")
finish(message="...")

Coordinates are on a 0-1000 grid over the screenshot. Call finish only when the
goal is fully achieved.`

const phoneSystemPrompt = `You are a phone-use agent. You are given the user's goal and a
screenshot of the current screen. Reply with your reasoning followed by exactly one call:

do(action="Tap", element=[x, y])
do(action="LongPress", element=[x, y])
do(action="Swipe", element=[x1, y1], element2=[x2, y2])
do(action="Type", text="...")
do(action="Launch", app="...")
do(action="Back")
finish(message="...")

Element positions are on a 0-1000 grid over the screenshot. Call finish only when
the goal is fully achieved.`

const maiSystemPrompt = `You are a phone-use agent. You are given the user's goal and a
screenshot of the current screen. Think inside <thinking></thinking> tags, then emit
exactly one tool call:

<tool_call>{"name": "mobile_use", "arguments": {"action": "...", ...}}</tool_call>

Supported actions: click (coordinate), long_press (coordinate), swipe (coordinate,
coordinate2), type (text), open_app (app), system_button (button), wait, and
terminate (status). Coordinates are on a 0-999 grid over the screenshot.`

// defaultSystemPrompt returns the built-in system prompt for a dialect.
func defaultSystemPrompt(agentType string) string {
	switch agentType {
	case "phone":
		return phoneSystemPrompt
	case "mai":
		return maiSystemPrompt
	default:
		return glmSystemPrompt
	}
}

// buildStepPrompt assembles the user turn for one step: the goal, a
// bounded window of prior reasoning, and the current device state.
func buildStepPrompt(cfg Config, goal, currentApp string, thoughts []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n", goal)
	if cfg.Lang != "" && cfg.Lang != "en" {
		fmt.Fprintf(&b, "Respond in language: %s\n", cfg.Lang)
	}
	if currentApp != "" {
		fmt.Fprintf(&b, "Current app: %s\n", currentApp)
	}

	if len(thoughts) > 0 {
		b.WriteString("\nPrevious steps:\n")
		for i, th := range thoughts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(th))
		}
	}

	b.WriteString("\nThe current screenshot is attached. Decide the next action.")
	return b.String()
}
