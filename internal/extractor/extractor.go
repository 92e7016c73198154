// internal/extractor/extractor.go
package extractor

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is a stage of turning a model reply into a validated action.
type State int

const (
	StateReceivedText State = iota
	StateCodeBlockLocated
	StateJSONParsed
	StateSchemaValidated
	StateAccepted
	StateRejected
)

var stateNames = [...]string{"ReceivedText", "CodeBlockLocated", "JSONParsed", "SchemaValidated", "Accepted", "Rejected"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Extractor locates, parses and validates the structured action inside a model reply.
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor. A nil logger discards output.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger.Named("extractor")}
}

// Extract runs the reply through the state machine. On success the result is fully
// populated; on failure the result is nil and the error is a *schemas.Error of kind
// NoStructuredPayload, MalformedPayload or SchemaViolation.
func (x *Extractor) Extract(reply string, elements schemas.ElementMap) (*schemas.DecisionResult, error) {
	m := &machine{state: StateReceivedText, reply: reply, elements: elements}
	for m.state != StateAccepted && m.state != StateRejected {
		m.step()
	}

	if m.state == StateRejected {
		x.logger.Warn("Model reply rejected",
			zap.Stringer("failed_at", m.failedAt),
			zap.String("raw_reply", truncateString(reply, 500)),
			zap.Error(m.err))
		return nil, m.err
	}

	x.logger.Debug("Model reply accepted", zap.String("action", string(m.result.Action.Kind())))
	return m.result, nil
}

// Extract is a convenience wrapper that runs without logging.
func Extract(reply string, elements schemas.ElementMap) (*schemas.DecisionResult, error) {
	return New(nil).Extract(reply, elements)
}

// machine carries one reply through the states. Each step advances exactly once.
type machine struct {
	state    State
	failedAt State
	reply    string
	elements schemas.ElementMap

	block   string
	payload interface{}
	result  *schemas.DecisionResult
	err     error
}

func (m *machine) step() {
	switch m.state {
	case StateReceivedText:
		block, ok := findJSONBlock(m.reply)
		if !ok {
			m.reject(schemas.NewError(schemas.ErrKindNoStructuredPayload, "reply contains no fenced json block", nil))
			return
		}
		m.block = block
		m.state = StateCodeBlockLocated

	case StateCodeBlockLocated:
		body := strings.TrimSpace(m.block)
		if body == "" {
			m.reject(schemas.NewError(schemas.ErrKindMalformedPayload, "json block is empty", nil))
			return
		}
		if err := json.Unmarshal([]byte(body), &m.payload); err != nil {
			m.reject(schemas.NewError(schemas.ErrKindMalformedPayload, truncateString(err.Error(), 200), nil))
			return
		}
		m.state = StateJSONParsed

	case StateJSONParsed:
		result, err := validate(m.payload, m.elements)
		if err != nil {
			m.reject(err)
			return
		}
		m.result = result
		m.state = StateSchemaValidated

	case StateSchemaValidated:
		m.state = StateAccepted
	}
}

func (m *machine) reject(err error) {
	m.failedAt = m.state
	m.err = err
	m.result = nil
	m.state = StateRejected
}

// -- Schema validation --

func violation(field, format string, args ...interface{}) error {
	return schemas.NewFieldError(schemas.ErrKindSchemaViolation, field, fmt.Sprintf(format, args...))
}

func validate(payload interface{}, elements schemas.ElementMap) (*schemas.DecisionResult, error) {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return nil, violation("$", "payload must be a JSON object")
	}

	rawExplanation, ok := root["briefExplanation"]
	if !ok {
		return nil, violation("briefExplanation", "is required")
	}
	explanation, ok := rawExplanation.(string)
	if !ok {
		return nil, violation("briefExplanation", "must be a string")
	}

	rawAction, ok := root["nextAction"]
	if !ok {
		return nil, violation("nextAction", "is required")
	}
	next, ok := rawAction.(map[string]interface{})
	if !ok {
		return nil, violation("nextAction", "must be an object")
	}

	action, err := validateAction(next, elements)
	if err != nil {
		return nil, err
	}
	return &schemas.DecisionResult{Explanation: explanation, Action: action}, nil
}

func validateAction(next map[string]interface{}, elements schemas.ElementMap) (schemas.NextAction, error) {
	rawKind, ok := next["action"]
	if !ok {
		return nil, violation("nextAction.action", "is required")
	}
	kindStr, ok := rawKind.(string)
	if !ok {
		return nil, violation("nextAction.action", "must be a string")
	}

	kind := schemas.ActionKind(kindStr)
	if !kind.IsKnown() {
		return nil, violation("nextAction.action", "unknown action %q; expected one of %s", kind, knownKinds())
	}

	switch kind {
	case schemas.ActionClick:
		id, err := elementField(next, elements)
		if err != nil {
			return nil, err
		}
		return schemas.ClickAction{Element: id}, nil

	case schemas.ActionType:
		id, err := elementField(next, elements)
		if err != nil {
			return nil, err
		}
		rawText, ok := next["text"]
		if !ok {
			return nil, violation("nextAction.text", "is required for type")
		}
		text, ok := rawText.(string)
		if !ok {
			return nil, violation("nextAction.text", "must be a string")
		}
		return schemas.TypeAction{Element: id, Text: text}, nil

	case schemas.ActionScroll:
		var scroll schemas.ScrollAction
		if rawDir, ok := next["direction"]; ok {
			dir, ok := rawDir.(string)
			if !ok || !schemas.ScrollDirection(dir).IsValid() {
				return nil, violation("nextAction.direction", "must be one of up, down, left, right")
			}
			scroll.Direction = schemas.ScrollDirection(dir)
		}
		if rawAmount, ok := next["amount"]; ok {
			amount, ok := asInt(rawAmount)
			if !ok || amount <= 0 {
				return nil, violation("nextAction.amount", "must be a positive integer")
			}
			scroll.Amount = amount
		}
		return scroll, nil

	case schemas.ActionWait:
		rawSeconds, ok := next["seconds"]
		if !ok {
			return nil, violation("nextAction.seconds", "is required for wait")
		}
		seconds, ok := rawSeconds.(float64)
		if !ok {
			return nil, violation("nextAction.seconds", "must be a number")
		}
		if seconds < 0 {
			return nil, violation("nextAction.seconds", "must not be negative, got %v", seconds)
		}
		return schemas.WaitAction{Seconds: seconds}, nil
	}
	return schemas.DoneAction{}, nil
}

func knownKinds() string {
	names := make([]string, len(schemas.KnownActionKinds))
	for i, k := range schemas.KnownActionKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// elementField reads nextAction.element and checks it against the request's elements.
func elementField(next map[string]interface{}, elements schemas.ElementMap) (schemas.ElementID, error) {
	raw, ok := next["element"]
	if !ok {
		return 0, violation("nextAction.element", "is required")
	}
	n, ok := asInt(raw)
	if !ok {
		return 0, violation("nextAction.element", "must be an integer")
	}
	id := schemas.ElementID(n)
	if !elements.Has(id) {
		return 0, violation("nextAction.element", "element %d is not in the element map", n)
	}
	return id, nil
}

// maxExactInt is the largest magnitude a float64 holds without losing integer precision.
const maxExactInt = 1 << 53

// asInt accepts a decoded JSON number with no fractional part that is exactly
// representable and fits in an int.
func asInt(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, false
	}
	if f > float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0, false
	}
	return int(f), true
}

// truncateString truncates a string to a maximum length for logging.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
