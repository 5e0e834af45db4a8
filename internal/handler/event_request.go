package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Event discriminators accepted in the "type" field of an event payload.
const (
	eventTypeTradeAlert     = "trade_alert"
	eventTypeMarketAnalysis = "market_analysis"
	eventTypeJournalEntry   = "journal_entry"
	eventTypePositionUpdate = "position_update"
)

type eventEnvelope struct {
	Type string `json:"type"`
}

type tradeAlertRequest struct {
	Symbol      string   `json:"symbol"`
	Action      string   `json:"action"`
	Price       float64  `json:"price"`
	Quantity    float64  `json:"quantity"`
	Strategy    string   `json:"strategy"`
	Reasoning   string   `json:"reasoning"`
	StrikePrice *float64 `json:"strikePrice,omitempty"`
	Expiration  string   `json:"expiration,omitempty"`
	StopLoss    *float64 `json:"stopLoss,omitempty"`
	TakeProfit  *float64 `json:"takeProfit,omitempty"`
}

type marketAnalysisRequest struct {
	Symbol            string   `json:"symbol"`
	Title             string   `json:"title"`
	Sentiment         string   `json:"sentiment"`
	Summary           string   `json:"summary"`
	Price             *float64 `json:"price,omitempty"`
	ChangePercent     *float64 `json:"changePercent,omitempty"`
	SupportLevel      *float64 `json:"supportLevel,omitempty"`
	ResistanceLevel   *float64 `json:"resistanceLevel,omitempty"`
	ImpliedVolatility *float64 `json:"impliedVolatility,omitempty"`
}

type journalEntryRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Symbol     string   `json:"symbol,omitempty"`
	EntryPrice *float64 `json:"entryPrice,omitempty"`
	ExitPrice  *float64 `json:"exitPrice,omitempty"`
	PnL        *float64 `json:"pnl,omitempty"`
	PnLPercent *float64 `json:"pnlPercent,omitempty"`
	Lessons    string   `json:"lessons,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type greeksRequest struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

type positionUpdateRequest struct {
	Symbol        string         `json:"symbol"`
	Strategy      string         `json:"strategy"`
	Quantity      float64        `json:"quantity"`
	EntryPrice    float64        `json:"entryPrice"`
	CurrentPrice  float64        `json:"currentPrice"`
	UnrealizedPnL float64        `json:"unrealizedPnl"`
	PnLPercent    *float64       `json:"pnlPercent,omitempty"`
	DaysToExpiry  *int           `json:"daysToExpiry,omitempty"`
	Greeks        *greeksRequest `json:"greeks,omitempty"`
}

// decodeEvent turns a typed JSON payload into a domain event.
func decodeEvent(raw json.RawMessage) (domain.Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid event payload", domain.ErrValidation)
	}

	switch strings.ToLower(strings.TrimSpace(envelope.Type)) {
	case eventTypeTradeAlert:
		var req tradeAlertRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, invalidEvent(eventTypeTradeAlert)
		}
		return domain.TradeAlert{
			Symbol:      req.Symbol,
			Action:      req.Action,
			Price:       req.Price,
			Quantity:    req.Quantity,
			Strategy:    req.Strategy,
			Reasoning:   req.Reasoning,
			StrikePrice: req.StrikePrice,
			Expiration:  req.Expiration,
			StopLoss:    req.StopLoss,
			TakeProfit:  req.TakeProfit,
		}, nil
	case eventTypeMarketAnalysis:
		var req marketAnalysisRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, invalidEvent(eventTypeMarketAnalysis)
		}
		return domain.MarketAnalysis{
			Symbol:            req.Symbol,
			Title:             req.Title,
			Sentiment:         req.Sentiment,
			Summary:           req.Summary,
			Price:             req.Price,
			ChangePercent:     req.ChangePercent,
			SupportLevel:      req.SupportLevel,
			ResistanceLevel:   req.ResistanceLevel,
			ImpliedVolatility: req.ImpliedVolatility,
		}, nil
	case eventTypeJournalEntry:
		var req journalEntryRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, invalidEvent(eventTypeJournalEntry)
		}
		return domain.JournalEntry{
			Title:      req.Title,
			Content:    req.Content,
			Symbol:     req.Symbol,
			EntryPrice: req.EntryPrice,
			ExitPrice:  req.ExitPrice,
			PnL:        req.PnL,
			PnLPercent: req.PnLPercent,
			Lessons:    req.Lessons,
			Tags:       req.Tags,
		}, nil
	case eventTypePositionUpdate:
		var req positionUpdateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, invalidEvent(eventTypePositionUpdate)
		}
		update := domain.PositionUpdate{
			Symbol:        req.Symbol,
			Strategy:      req.Strategy,
			Quantity:      req.Quantity,
			EntryPrice:    req.EntryPrice,
			CurrentPrice:  req.CurrentPrice,
			UnrealizedPnL: req.UnrealizedPnL,
			PnLPercent:    req.PnLPercent,
			DaysToExpiry:  req.DaysToExpiry,
		}
		if req.Greeks != nil {
			update.Greeks = &domain.Greeks{
				Delta: req.Greeks.Delta,
				Gamma: req.Greeks.Gamma,
				Theta: req.Greeks.Theta,
				Vega:  req.Greeks.Vega,
			}
		}
		return update, nil
	default:
		return nil, fmt.Errorf("%w: unsupported event type %q", domain.ErrValidation, envelope.Type)
	}
}

func invalidEvent(eventType string) error {
	return fmt.Errorf("%w: invalid %s payload", domain.ErrValidation, eventType)
}
