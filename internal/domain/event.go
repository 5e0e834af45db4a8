package domain

import (
	"fmt"
	"strings"
)

// Event tags recorded in the history log.
const (
	EventTagAlert    = "alert"
	EventTagAnalysis = "analysis"
	EventTagJournal  = "journal"
	EventTagPosition = "position"
	EventTagGeneral  = "general"
)

// Event is one of TradeAlert, MarketAnalysis, JournalEntry, PositionUpdate.
type Event interface {
	Tag() string
	Validate() error
	isEvent()
}

// TradeAlert announces a trade entry or exit.
type TradeAlert struct {
	Symbol      string
	Action      string
	Price       float64
	Quantity    float64
	Strategy    string
	Reasoning   string
	StrikePrice *float64
	Expiration  string
	StopLoss    *float64
	TakeProfit  *float64
}

func (TradeAlert) isEvent() {}
func (TradeAlert) Tag() string { return EventTagAlert }

func (a TradeAlert) Validate() error {
	return requireSymbol("trade alert", a.Symbol)
}

// MarketAnalysis shares a view on an underlying.
type MarketAnalysis struct {
	Symbol            string
	Title             string
	Sentiment         string
	Summary           string
	Price             *float64
	ChangePercent     *float64
	SupportLevel      *float64
	ResistanceLevel   *float64
	ImpliedVolatility *float64
}

func (MarketAnalysis) isEvent() {}
func (MarketAnalysis) Tag() string { return EventTagAnalysis }

func (m MarketAnalysis) Validate() error {
	return requireSymbol("market analysis", m.Symbol)
}

// JournalEntry is a trader's journal note, optionally tied to a trade.
type JournalEntry struct {
	Title      string
	Content    string
	Symbol     string
	EntryPrice *float64
	ExitPrice  *float64
	PnL        *float64
	PnLPercent *float64
	Lessons    string
	Tags       []string
}

func (JournalEntry) isEvent() {}
func (JournalEntry) Tag() string { return EventTagJournal }

func (j JournalEntry) Validate() error {
	if strings.TrimSpace(j.Title) == "" && strings.TrimSpace(j.Content) == "" {
		return fmt.Errorf("%w: journal entry requires a title or content", ErrValidation)
	}
	return nil
}

// Greeks holds option sensitivities for a position.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// PositionUpdate reports the current state of an open position.
type PositionUpdate struct {
	Symbol        string
	Strategy      string
	Quantity      float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	PnLPercent    *float64
	DaysToExpiry  *int
	Greeks        *Greeks
}

func (PositionUpdate) isEvent() {}
func (PositionUpdate) Tag() string { return EventTagPosition }

func (p PositionUpdate) Validate() error {
	return requireSymbol("position update", p.Symbol)
}

func requireSymbol(kind, symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return fmt.Errorf("%w: %s symbol is required", ErrValidation, kind)
	}
	return nil
}
