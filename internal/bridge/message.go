package bridge

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

// Message is one of ElementSelected, UpdateElement or ClearSelection.
type Message interface {
	Kind() Kind
}

// ElementSelected is posted by a document when the user clicks an element.
type ElementSelected struct {
	NodeID    string      `json:"nodeId"`
	ID        string      `json:"id"`
	TagName   string      `json:"tagName"`
	Text      string      `json:"text"`
	ClassName string      `json:"className"`
	OuterHTML string      `json:"outerHtml"`
	Rect      models.Rect `json:"rect"`
}

// UpdateElement replaces an element's text and/or merges inline styles.
type UpdateElement struct {
	ID     string            `json:"id"`
	Text   *string           `json:"text,omitempty"`
	Styles map[string]string `json:"styles,omitempty"`
}

// ClearSelection removes the selection outline inside a document.
type ClearSelection struct{}

func (ElementSelected) Kind() Kind { return KindElementSelected }
func (UpdateElement) Kind() Kind   { return KindUpdateElement }
func (ClearSelection) Kind() Kind  { return KindClearSelection }

// Element converts the message into the selection state it describes.
func (m ElementSelected) Element() models.SelectedElement {
	return models.SelectedElement{
		NodeID:    m.NodeID,
		ElementID: m.ID,
		TagName:   m.TagName,
		Text:      m.Text,
		ClassName: m.ClassName,
		OuterHTML: m.OuterHTML,
		Rect:      m.Rect,
	}
}

var (
	stylePropRe  = regexp.MustCompile(`^-{0,2}[a-zA-Z][a-zA-Z0-9-]*$`)
	styleValueRe = regexp.MustCompile(`^[^;{}<>]*$`)
)

// Validate checks the command before it is sent to a document.
func (m UpdateElement) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("bridge: update element: missing id: %w", apperr.ErrInvalidInput)
	}
	if m.Text == nil && len(m.Styles) == 0 {
		return fmt.Errorf("bridge: update element: nothing to change: %w", apperr.ErrInvalidInput)
	}
	for k, v := range m.Styles {
		if !stylePropRe.MatchString(k) || !styleValueRe.MatchString(v) {
			return fmt.Errorf("bridge: update element: bad style %q: %w", k, apperr.ErrInvalidInput)
		}
	}
	return nil
}

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses a raw message. Unknown kinds and malformed payloads are
// rejected with apperr.ErrInvalidInput.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bridge: decode: %v: %w", err, apperr.ErrInvalidInput)
	}
	var (
		msg Message
		err error
	)
	switch env.Type {
	case KindElementSelected:
		var m ElementSelected
		err = json.Unmarshal(raw, &m)
		if err == nil && (m.NodeID == "" || m.ID == "") {
			err = fmt.Errorf("missing node or element id")
		}
		msg = m
	case KindUpdateElement:
		var m UpdateElement
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindClearSelection:
		msg = ClearSelection{}
	default:
		err = fmt.Errorf("unknown message type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("bridge: decode: %v: %w", err, apperr.ErrInvalidInput)
	}
	return msg, nil
}

// Encode serializes a message with its type tag.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case ElementSelected:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ElementSelected
		}{v.Kind(), v})
	case UpdateElement:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			UpdateElement
		}{v.Kind(), v})
	case ClearSelection:
		return json.Marshal(envelope{Type: v.Kind()})
	}
	return nil, fmt.Errorf("bridge: encode: unsupported message %T", m)
}
