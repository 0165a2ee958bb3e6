package schemas

import (
	"encoding/json"
	"fmt"
	"math"
)

// ActionType identifies one kind of browser action. The set is closed:
// parsers reject anything outside of it.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionScroll   ActionType = "scroll"
	ActionKey      ActionType = "key"
	ActionWait     ActionType = "wait"
	ActionNavigate ActionType = "navigate"
	ActionDone     ActionType = "done"
)

// ActionTypes lists every action type in canonical order. Aggregation and
// normalization always iterate this slice so results do not depend on map
// iteration order.
var ActionTypes = []ActionType{
	ActionClick,
	ActionTypeText,
	ActionScroll,
	ActionKey,
	ActionWait,
	ActionNavigate,
	ActionDone,
}

// KnownActionType reports whether t belongs to the closed action-type set.
func KnownActionType(t ActionType) bool {
	switch t {
	case ActionClick, ActionTypeText, ActionScroll, ActionKey, ActionWait, ActionNavigate, ActionDone:
		return true
	}
	return false
}

// ActionParams is the payload of one action kind. Each implementation
// validates its own required fields so that malformed records are caught at
// parse time rather than when the action is consumed.
type ActionParams interface {
	Kind() ActionType
	Validate() error
}

// ClickParams carries the target point of a click in absolute pixels.
type ClickParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p ClickParams) Kind() ActionType { return ActionClick }

func (p ClickParams) Validate() error {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("click coordinates must be finite, got (%v, %v)", p.X, p.Y)
	}
	return nil
}

// TypeTextParams carries the text to insert at the current focus.
type TypeTextParams struct {
	Text string `json:"text"`
}

func (p TypeTextParams) Kind() ActionType { return ActionTypeText }
func (p TypeTextParams) Validate() error  { return nil }

// ScrollParams carries wheel deltas in pixels. Positive dy scrolls down.
type ScrollParams struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

func (p ScrollParams) Kind() ActionType { return ActionScroll }

func (p ScrollParams) Validate() error {
	if math.IsNaN(p.DX) || math.IsInf(p.DX, 0) || math.IsNaN(p.DY) || math.IsInf(p.DY, 0) {
		return fmt.Errorf("scroll deltas must be finite, got (%v, %v)", p.DX, p.DY)
	}
	return nil
}

// KeyParams carries a DOM key code such as "Enter" or "Escape".
type KeyParams struct {
	Code string `json:"code"`
}

func (p KeyParams) Kind() ActionType { return ActionKey }

func (p KeyParams) Validate() error {
	if p.Code == "" {
		return fmt.Errorf("key action requires a non-empty code")
	}
	return nil
}

// WaitParams carries the pause duration in milliseconds.
type WaitParams struct {
	Ms int `json:"ms"`
}

func (p WaitParams) Kind() ActionType { return ActionWait }

func (p WaitParams) Validate() error {
	if p.Ms < 0 {
		return fmt.Errorf("wait duration must be non-negative, got %d", p.Ms)
	}
	return nil
}

// NavigateParams carries the destination URL.
type NavigateParams struct {
	URL string `json:"url"`
}

func (p NavigateParams) Kind() ActionType { return ActionNavigate }

func (p NavigateParams) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("navigate action requires a non-empty url")
	}
	return nil
}

// DoneParams marks the end of a session. It has no fields.
type DoneParams struct{}

func (p DoneParams) Kind() ActionType { return ActionDone }
func (p DoneParams) Validate() error  { return nil }

// Action is the tagged union over the closed action-type set. Params is
// always non-nil for a valid Action and its concrete type matches Type.
type Action struct {
	Type   ActionType
	Params ActionParams
}

// Constructors keep the tag and payload consistent at the call site.

func NewClick(x, y float64) Action { return Action{Type: ActionClick, Params: ClickParams{X: x, Y: y}} }
func NewTypeText(text string) Action {
	return Action{Type: ActionTypeText, Params: TypeTextParams{Text: text}}
}
func NewScroll(dx, dy float64) Action {
	return Action{Type: ActionScroll, Params: ScrollParams{DX: dx, DY: dy}}
}
func NewKey(code string) Action { return Action{Type: ActionKey, Params: KeyParams{Code: code}} }
func NewWait(ms int) Action     { return Action{Type: ActionWait, Params: WaitParams{Ms: ms}} }
func NewNavigate(url string) Action {
	return Action{Type: ActionNavigate, Params: NavigateParams{URL: url}}
}
func NewDone() Action { return Action{Type: ActionDone, Params: DoneParams{}} }

// Coordinates returns the screen point an action targets. Only clicks carry
// a screen position; scroll deltas are relative and do not qualify.
func (a Action) Coordinates() (x, y float64, ok bool) {
	if p, is := a.Params.(ClickParams); is {
		return p.X, p.Y, true
	}
	return 0, 0, false
}

// WithCoordinates returns a copy of the action with its target point
// replaced. It is a no-op for actions that carry no coordinates.
func (a Action) WithCoordinates(x, y float64) Action {
	if _, is := a.Params.(ClickParams); is {
		return NewClick(x, y)
	}
	return a
}

// Validate checks the tag and the per-kind payload.
func (a Action) Validate() error {
	if !KnownActionType(a.Type) {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if a.Params == nil {
		return fmt.Errorf("action %q has no parameters", a.Type)
	}
	if a.Params.Kind() != a.Type {
		return fmt.Errorf("action tag %q does not match payload kind %q", a.Type, a.Params.Kind())
	}
	return a.Params.Validate()
}

// actionWire is the flat on-disk representation: {"type": ..., ...params}.
// Pointer fields distinguish absent params from zero values so that required
// fields are enforced during parsing.
type actionWire struct {
	Type ActionType `json:"type"`
	X    *float64   `json:"x,omitempty"`
	Y    *float64   `json:"y,omitempty"`
	Text *string    `json:"text,omitempty"`
	DX   *float64   `json:"dx,omitempty"`
	DY   *float64   `json:"dy,omitempty"`
	Code *string    `json:"code,omitempty"`
	Ms   *int       `json:"ms,omitempty"`
	URL  *string    `json:"url,omitempty"`
}

// MarshalJSON emits the flat wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	w := actionWire{Type: a.Type}
	switch p := a.Params.(type) {
	case ClickParams:
		w.X, w.Y = &p.X, &p.Y
	case TypeTextParams:
		w.Text = &p.Text
	case ScrollParams:
		w.DX, w.DY = &p.DX, &p.DY
	case KeyParams:
		w.Code = &p.Code
	case WaitParams:
		w.Ms = &p.Ms
	case NavigateParams:
		w.URL = &p.URL
	case DoneParams:
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the flat wire shape, dispatching on the type tag and
// rejecting payloads with missing required fields.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := actionFromWire(w)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction decodes and validates a single action from JSON bytes.
func ParseAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

func actionFromWire(w actionWire) (Action, error) {
	var a Action
	switch w.Type {
	case ActionClick:
		if w.X == nil || w.Y == nil {
			return a, fmt.Errorf("click action requires x and y")
		}
		a = NewClick(*w.X, *w.Y)
	case ActionTypeText:
		if w.Text == nil {
			return a, fmt.Errorf("type action requires text")
		}
		a = NewTypeText(*w.Text)
	case ActionScroll:
		if w.DX == nil || w.DY == nil {
			return a, fmt.Errorf("scroll action requires dx and dy")
		}
		a = NewScroll(*w.DX, *w.DY)
	case ActionKey:
		if w.Code == nil {
			return a, fmt.Errorf("key action requires code")
		}
		a = NewKey(*w.Code)
	case ActionWait:
		if w.Ms == nil {
			return a, fmt.Errorf("wait action requires ms")
		}
		a = NewWait(*w.Ms)
	case ActionNavigate:
		if w.URL == nil {
			return a, fmt.Errorf("navigate action requires url")
		}
		a = NewNavigate(*w.URL)
	case ActionDone:
		a = NewDone()
	default:
		return a, fmt.Errorf("unknown action type %q", w.Type)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}
