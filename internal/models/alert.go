package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Direction is the sign of a price move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Arrow returns the glyph used in log lines.
func (d Direction) Arrow() string {
	if d == DirectionDown {
		return "↓"
	}
	return "↑"
}

// Emoji returns the glyph used in chat messages.
func (d Direction) Emoji() string {
	if d == DirectionDown {
		return "📉"
	}
	return "📈"
}

// DirectionOf returns the direction of a signed change. Zero counts as up.
func DirectionOf(change decimal.Decimal) Direction {
	if change.IsNegative() {
		return DirectionDown
	}
	return DirectionUp
}

// ChangePercent computes (latest - previous) / previous * 100.
// ok is false when previous is zero.
func ChangePercent(previous, latest decimal.Decimal) (change decimal.Decimal, ok bool) {
	if previous.IsZero() {
		return decimal.Zero, false
	}
	return latest.Sub(previous).Div(previous).Mul(hundred), true
}

// AlertEvent is constructed when a qualifying move clears the cooldown.
// It is rendered into log lines and outgoing messages, never stored as-is.
type AlertEvent struct {
	Symbol        string
	Name          string
	ChangePercent decimal.Decimal
	Direction     Direction
	CurrentPrice  decimal.Decimal
	Timestamp     time.Time
}

// AbsPercent returns the unsigned change formatted with two decimals.
func (a AlertEvent) AbsPercent() string {
	return a.ChangePercent.Abs().StringFixed(2)
}

// Outcome is the per-asset result of one check cycle.
type Outcome string

const (
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeBelowThreshold   Outcome = "below_threshold"
	OutcomeAlreadyAlerted   Outcome = "already_alerted"
	OutcomeAlerted          Outcome = "alerted"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeFailed           Outcome = "failed"
)
