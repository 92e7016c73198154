package schemas

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
)

// -- Page State Schemas --

// ElementID identifies one interactable element within a single decision call.
type ElementID int

// ElementDescriptor describes one interactable page element.
// X and Y are the element's center in CSS pixels, carried through for whoever executes
// the chosen action; they play no part in the decision itself.
type ElementDescriptor struct {
	Tag  string  `json:"tag"`
	Link string  `json:"link,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
}

// ElementMap is the per-call mapping of element ids to descriptors.
type ElementMap map[ElementID]ElementDescriptor

// Has reports whether id is present in the map.
func (m ElementMap) Has(id ElementID) bool {
	_, ok := m[id]
	return ok
}

// DecisionRequest is everything one decision call needs. The core keeps nothing between
// calls, so the caller re-supplies the log and current URL every time.
type DecisionRequest struct {
	Goal          string     `json:"goal"`
	Elements      ElementMap `json:"elements"`
	Log           []string   `json:"log"`
	CurrentURL    string     `json:"current_url"`
	ScreenshotRef string     `json:"screenshot_ref"`
}

// Validate checks that every field is present. A nil Elements map or nil Log counts as
// absent; empty but non-nil values are fine.
func (r DecisionRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Goal) == "":
		return NewFieldError(ErrKindRequestValidation, "goal", "is required")
	case r.Elements == nil:
		return NewFieldError(ErrKindRequestValidation, "elements", "is required")
	case r.Log == nil:
		return NewFieldError(ErrKindRequestValidation, "log", "is required")
	case strings.TrimSpace(r.CurrentURL) == "":
		return NewFieldError(ErrKindRequestValidation, "current_url", "is required")
	case strings.TrimSpace(r.ScreenshotRef) == "":
		return NewFieldError(ErrKindRequestValidation, "screenshot_ref", "is required")
	}

	u, err := url.Parse(r.ScreenshotRef)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewFieldError(ErrKindRequestValidation, "screenshot_ref", fmt.Sprintf("%q is not an absolute http(s) URL", r.ScreenshotRef))
	}
	return nil
}

// -- Action Schemas --

// NextAction is one variant of the action schema. The set of implementations is closed.
type NextAction interface {
	Kind() ActionKind
	isNextAction()
}

// ClickAction clicks an element.
type ClickAction struct {
	Element ElementID
}

// TypeAction types text into an element.
type TypeAction struct {
	Element ElementID
	Text    string
}

// ScrollAction scrolls the page. Both fields are optional: an empty Direction and a zero
// Amount mean the model did not say.
type ScrollAction struct {
	Direction ScrollDirection
	Amount    int
}

// WaitAction pauses for a number of seconds.
type WaitAction struct {
	Seconds float64
}

// DoneAction signals that the goal is satisfied.
type DoneAction struct{}

func (ClickAction) Kind() ActionKind  { return ActionClick }
func (TypeAction) Kind() ActionKind   { return ActionType }
func (ScrollAction) Kind() ActionKind { return ActionScroll }
func (WaitAction) Kind() ActionKind   { return ActionWait }
func (DoneAction) Kind() ActionKind   { return ActionDone }

func (ClickAction) isNextAction()  {}
func (TypeAction) isNextAction()   {}
func (ScrollAction) isNextAction() {}
func (WaitAction) isNextAction()   {}
func (DoneAction) isNextAction()   {}

// actionWire is the JSON shape of nextAction.
type actionWire struct {
	Action    ActionKind      `json:"action"`
	Element   *ElementID      `json:"element,omitempty"`
	Text      *string         `json:"text,omitempty"`
	Direction ScrollDirection `json:"direction,omitempty"`
	Amount    int             `json:"amount,omitempty"`
	Seconds   *float64        `json:"seconds,omitempty"`
}

// marshalWire encodes v with every backtick escaped, so an encoded result can sit inside a
// markdown code fence and be read back out of it. Backticks only occur inside JSON strings,
// where \u0060 decodes to the same character.
func marshalWire(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(b, []byte("`"), []byte(`\u0060`)), nil
}

func (a ClickAction) MarshalJSON() ([]byte, error) {
	return marshalWire(actionWire{Action: ActionClick, Element: &a.Element})
}

func (a TypeAction) MarshalJSON() ([]byte, error) {
	return marshalWire(actionWire{Action: ActionType, Element: &a.Element, Text: &a.Text})
}

func (a ScrollAction) MarshalJSON() ([]byte, error) {
	return marshalWire(actionWire{Action: ActionScroll, Direction: a.Direction, Amount: a.Amount})
}

func (a WaitAction) MarshalJSON() ([]byte, error) {
	return marshalWire(actionWire{Action: ActionWait, Seconds: &a.Seconds})
}

func (a DoneAction) MarshalJSON() ([]byte, error) {
	return marshalWire(actionWire{Action: ActionDone})
}

// -- Result Schemas --

// DecisionResult is the validated outcome of one decision call.
type DecisionResult struct {
	Explanation string
	Action      NextAction
}

// MarshalJSON renders the result in the same shape the model is asked to produce.
func (r DecisionResult) MarshalJSON() ([]byte, error) {
	if r.Action == nil {
		return nil, fmt.Errorf("decision result has no action")
	}
	return marshalWire(struct {
		BriefExplanation string     `json:"briefExplanation"`
		NextAction       NextAction `json:"nextAction"`
	}{r.Explanation, r.Action})
}
