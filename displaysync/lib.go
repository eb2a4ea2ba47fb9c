// Package displaysync defines the wire messages exchanged between a POS
// terminal and its customer-facing display.
package displaysync

import (
	"encoding/json"
	"fmt"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/catalog"
)

// ViewMode tells the customer display which screen to render.
type ViewMode string

const (
	ModeIdle              ViewMode = "IDLE"
	ModeCart              ViewMode = "CART"
	ModeModifierSelect    ViewMode = "MODIFIER_SELECT"
	ModeOrderTypeSelect   ViewMode = "ORDER_TYPE_SELECT"
	ModeTableNumberSelect ViewMode = "TABLE_NUMBER_SELECT"
	ModeTipping           ViewMode = "TIPPING"
	ModeProcessing        ViewMode = "PROCESSING"
	ModePaymentSuccess    ViewMode = "PAYMENT_SUCCESS"
)

// Message types on the display channel.
const (
	TypeSyncState         = "SYNC_STATE"
	TypeTipSelected       = "TIP_SELECTED"
	TypeOrderTypeSelected = "ORDER_TYPE_SELECTED"
)

// Message is the envelope for every display-channel payload.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StateSnapshot mirrors the terminal's flow state onto the second screen.
type StateSnapshot struct {
	Mode  ViewMode    `json:"mode"`
	Cart  []cart.Line `json:"cart"`
	Total float64     `json:"total"`
	// TipBase is what tip percentages apply to, sent while tipping.
	TipBase         float64                 `json:"tipBase,omitempty"`
	ActiveItemName  string                  `json:"activeItemName,omitempty"`
	AvailableGroups []catalog.ModifierGroup `json:"availableGroups,omitempty"`
}

// TipSelection is published by the customer display when the customer picks
// a tip on their own screen.
type TipSelection struct {
	TipAmount float64 `json:"tipAmount"`
}

// OrderTypeSelection is published by the customer display when the customer
// picks dine-in or to-go on their own screen.
type OrderTypeSelection struct {
	OrderType string `json:"orderType"`
}

func NewSyncState(snap StateSnapshot) (*Message, error) {
	return wrap(TypeSyncState, snap)
}

func NewTipSelected(amount float64) (*Message, error) {
	return wrap(TypeTipSelected, TipSelection{TipAmount: amount})
}

func NewOrderTypeSelected(orderType string) (*Message, error) {
	return wrap(TypeOrderTypeSelected, OrderTypeSelection{OrderType: orderType})
}

func wrap(msgType string, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

func (m *Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %v", err)
	}
	return data, nil
}

func MessageFromBytes(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %v", err)
	}
	return &m, nil
}

func (m *Message) SyncState() (*StateSnapshot, error) {
	var snap StateSnapshot
	if err := json.Unmarshal(m.Payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return &snap, nil
}

func (m *Message) TipSelection() (*TipSelection, error) {
	var sel TipSelection
	if err := json.Unmarshal(m.Payload, &sel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return &sel, nil
}

func (m *Message) OrderTypeSelection() (*OrderTypeSelection, error) {
	var sel OrderTypeSelection
	if err := json.Unmarshal(m.Payload, &sel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return &sel, nil
}
