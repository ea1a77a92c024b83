// Package protocol defines the JSON-over-WebSocket wire surface: one
// type-dispatched message per line, string error codes, schemas under
// /schemas validated in tests.
package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeState   = "STATE"
	TypeError   = "ERROR"
)

type BaseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func DecodeBase(raw []byte) (BaseMsg, error) {
	var b BaseMsg
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("decode base: %w", err)
	}
	if b.Type == "" {
		return b, fmt.Errorf("message without type")
	}
	return b, nil
}
