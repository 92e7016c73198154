package schemas

// ActionKind is the discriminator carried in nextAction.action.
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionType   ActionKind = "type"
	ActionScroll ActionKind = "scroll"
	ActionWait   ActionKind = "wait"
	ActionDone   ActionKind = "done"
)

// KnownActionKinds lists every discriminator the action schema accepts.
var KnownActionKinds = []ActionKind{ActionClick, ActionType, ActionScroll, ActionWait, ActionDone}

// IsKnown reports whether k is part of the action schema. Matching is exact.
func (k ActionKind) IsKnown() bool {
	for _, known := range KnownActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ScrollDirection is the optional direction of a ScrollAction.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// IsValid reports whether d is one of the four scroll directions.
func (d ScrollDirection) IsValid() bool {
	switch d {
	case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
		return true
	}
	return false
}

// DefaultMaxOutputTokens is the reply ceiling used when none is configured.
// A next-action directive is short; 300 tokens has always been enough.
const DefaultMaxOutputTokens = 300
