// internal/prompt/composer.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// fence is kept out of the template literal because Go raw strings cannot contain backticks.
const fence = "```"

// actionTemplate is filled positionally:
// 1 goal, 2 element enumeration, 3 action log, 4 current URL, 5 code fence.
const actionTemplate = `
You are a browser automation assistant.

Your primary objective is to achieve the task stated below. It's crucial that you adhere strictly to the main goal throughout the process.

Goal:
%[1]s

Interactable elements on the current page:
%[2]s
Browsing, Thinking and Action Log (oldest first):
%[3]s

Current URL:
%[4]s

type ClickAction = { action: "click", element: number }
type TypeAction = { action: "type", element: number, text: string }
type ScrollAction = { action: "scroll", direction?: "up" | "down" | "left" | "right", amount?: number }
type WaitAction = { action: "wait", seconds: number }
type Done = { action: "done" }

## response format
{
  briefExplanation: string,
  nextAction: ClickAction | TypeAction | ScrollAction | WaitAction | Done
}

## response examples
%[5]sjson
{
  "briefExplanation": "I'll type 'funny cat videos' into the search bar",
  "nextAction": { "action": "type", "element": 11, "text": "funny cat videos" }
}
%[5]s
%[5]sjson
{
  "briefExplanation": "Today's doodle looks interesting, I'll click it",
  "nextAction": { "action": "click", "element": 9 }
}
%[5]s
%[5]sjson
{
  "briefExplanation": "The results are below the fold, I'll scroll down",
  "nextAction": { "action": "scroll", "direction": "down", "amount": 600 }
}
%[5]s
%[5]sjson
{
  "briefExplanation": "Waiting for the page to load completely",
  "nextAction": { "action": "wait", "seconds": 10 }
}
%[5]s
%[5]sjson
{
  "briefExplanation": "Done",
  "nextAction": { "action": "done" }
}
%[5]s

### Instructions:
- Carefully observe the provided screenshot.
- Only reference element numbers listed above.
- Determine the most appropriate next action.
- Articulate your response as exactly one JSON markdown code block (%[5]sjson ... %[5]s) with the keys "briefExplanation" and "nextAction".
`

// Input carries everything substituted into the action template.
type Input struct {
	Goal        string
	ElementText string
	CurrentURL  string
	Log         []string
}

// Compose fills the action template. Values are inserted verbatim.
func Compose(in Input) string {
	elements := in.ElementText
	if elements == "" {
		elements = "(no interactable elements)\n"
	}
	return fmt.Sprintf(actionTemplate, in.Goal, elements, formatLog(in.Log), in.CurrentURL, fence)
}

// ForRequest formats the request's elements and composes the full prompt.
func ForRequest(req schemas.DecisionRequest) string {
	return Compose(Input{
		Goal:        req.Goal,
		ElementText: FormatElements(req.Elements),
		CurrentURL:  req.CurrentURL,
		Log:         req.Log,
	})
}

// formatLog numbers entries in the order given.
func formatLog(log []string) string {
	if len(log) == 0 {
		return "(nothing yet)"
	}
	var sb strings.Builder
	for i, entry := range log {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, entry)
	}
	return sb.String()
}
