// Package formatter renders trading events into the plain-text messages
// shared with community channels. Every function is pure and total: absent
// or malformed optional fields degrade to placeholders.
package formatter

import (
	"fmt"
	"math"
	"strings"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	PlaceholderOpen = "Open"
	PlaceholderNA   = "N/A"
)

var printer = message.NewPrinter(language.English)

// Format renders any supported event. Unknown or nil events render a generic
// headline rather than an empty string.
func Format(event domain.Event) string {
	switch e := event.(type) {
	case domain.TradeAlert:
		return FormatTradeAlert(e)
	case *domain.TradeAlert:
		if e != nil {
			return FormatTradeAlert(*e)
		}
	case domain.MarketAnalysis:
		return FormatMarketAnalysis(e)
	case *domain.MarketAnalysis:
		if e != nil {
			return FormatMarketAnalysis(*e)
		}
	case domain.JournalEntry:
		return FormatJournalEntry(e)
	case *domain.JournalEntry:
		if e != nil {
			return FormatJournalEntry(*e)
		}
	case domain.PositionUpdate:
		return FormatPositionUpdate(e)
	case *domain.PositionUpdate:
		if e != nil {
			return FormatPositionUpdate(*e)
		}
	}
	return "📣 Trading update"
}

func FormatTradeAlert(a domain.TradeAlert) string {
	action := strings.ToUpper(strings.TrimSpace(a.Action))
	if action == "" {
		action = "TRADE"
	}

	lines := []string{
		fmt.Sprintf("🚨 TRADE ALERT: %s %s", action, symbol(a.Symbol)),
		"Price: " + currency(a.Price),
		"Quantity: " + quantity(a.Quantity),
		"Strategy: " + text(a.Strategy),
	}
	if a.StrikePrice != nil || strings.TrimSpace(a.Expiration) != "" {
		lines = append(lines, fmt.Sprintf("Strike: %s | Expiration: %s", optionalCurrency(a.StrikePrice, PlaceholderNA), text(a.Expiration)))
	}
	lines = append(lines,
		fmt.Sprintf("Stop Loss: %s | Take Profit: %s", optionalCurrency(a.StopLoss, PlaceholderNA), optionalCurrency(a.TakeProfit, PlaceholderNA)),
		"Reasoning: "+text(a.Reasoning),
	)

	return join(lines)
}

func FormatMarketAnalysis(m domain.MarketAnalysis) string {
	lines := []string{fmt.Sprintf("📊 MARKET ANALYSIS: %s", symbol(m.Symbol))}
	if title := strings.TrimSpace(m.Title); title != "" {
		lines = append(lines, title)
	}

	price := optionalCurrency(m.Price, PlaceholderNA)
	if m.ChangePercent != nil {
		price = fmt.Sprintf("%s (%s)", price, signedPercent(*m.ChangePercent))
	}

	lines = append(lines,
		"Sentiment: "+strings.ToUpper(text(m.Sentiment)),
		"Price: "+price,
		fmt.Sprintf("Support: %s | Resistance: %s", optionalCurrency(m.SupportLevel, PlaceholderNA), optionalCurrency(m.ResistanceLevel, PlaceholderNA)),
		"Implied Volatility: "+optionalPercent(m.ImpliedVolatility),
		text(m.Summary),
	)

	return join(lines)
}

func FormatJournalEntry(j domain.JournalEntry) string {
	title := strings.TrimSpace(j.Title)
	if title == "" {
		title = "Untitled entry"
	}

	pnl := PlaceholderNA
	if j.PnL != nil {
		pnl = signedCurrency(*j.PnL)
		if j.PnLPercent != nil {
			pnl = fmt.Sprintf("%s (%s)", pnl, signedPercent(*j.PnLPercent))
		}
	} else if j.PnLPercent != nil {
		pnl = signedPercent(*j.PnLPercent)
	}

	lines := []string{
		"📝 JOURNAL: " + title,
		"Symbol: " + text(strings.ToUpper(j.Symbol)),
		fmt.Sprintf("Entry: %s | Exit: %s", optionalCurrency(j.EntryPrice, PlaceholderNA), optionalCurrency(j.ExitPrice, PlaceholderOpen)),
		"P&L: " + pnl,
	}
	if content := strings.TrimSpace(j.Content); content != "" {
		lines = append(lines, content)
	}
	if lessons := strings.TrimSpace(j.Lessons); lessons != "" {
		lines = append(lines, "Lessons: "+lessons)
	}
	lines = append(lines, Tags(j.Tags))

	return join(lines)
}

func FormatPositionUpdate(p domain.PositionUpdate) string {
	icon := "📈"
	if p.UnrealizedPnL < 0 {
		icon = "📉"
	}

	pnl := signedCurrency(p.UnrealizedPnL)
	if p.PnLPercent != nil {
		pnl = fmt.Sprintf("%s (%s)", pnl, signedPercent(*p.PnLPercent))
	}

	dte := PlaceholderNA
	if p.DaysToExpiry != nil {
		dte = fmt.Sprintf("%d", *p.DaysToExpiry)
	}

	greeks := PlaceholderNA
	if p.Greeks != nil {
		greeks = fmt.Sprintf("Δ %s | Γ %s | Θ %s | V %s",
			greek(p.Greeks.Delta), greek(p.Greeks.Gamma), greek(p.Greeks.Theta), greek(p.Greeks.Vega))
	}

	return join([]string{
		fmt.Sprintf("%s POSITION UPDATE: %s", icon, symbol(p.Symbol)),
		"Strategy: " + text(p.Strategy),
		"Quantity: " + quantity(p.Quantity),
		fmt.Sprintf("Entry: %s | Current: %s", currency(p.EntryPrice), currency(p.CurrentPrice)),
		"Unrealized P&L: " + pnl,
		"Days to Expiry: " + dte,
		"Greeks: " + greeks,
	})
}

// Tags renders a tag list as space-joined hash-prefixed tokens.
func Tags(tags []string) string {
	tokens := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.Join(strings.Fields(strings.TrimLeft(strings.TrimSpace(tag), "#")), "")
		if cleaned == "" {
			continue
		}
		tokens = append(tokens, "#"+cleaned)
	}
	return strings.Join(tokens, " ")
}

func join(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func symbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PlaceholderNA
	}
	return s
}

func text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return PlaceholderNA
	}
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// maxCurrency bounds renderable amounts; anything larger is treated as bad
// input and keeps the whole part well inside int64.
var maxCurrency = decimal.New(1, 15)

// currency renders $1,234.50 or -$12.00.
func currency(v float64) string {
	if !finite(v) {
		return PlaceholderNA
	}

	d := decimal.NewFromFloat(v).Round(2)
	if d.Abs().GreaterThanOrEqual(maxCurrency) {
		return PlaceholderNA
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	whole := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", whole), cents)
}

func signedCurrency(v float64) string {
	out := currency(v)
	if out == PlaceholderNA || strings.HasPrefix(out, "-") {
		return out
	}
	return "+" + out
}

func optionalCurrency(v *float64, placeholder string) string {
	if v == nil || !finite(*v) {
		return placeholder
	}
	return currency(*v)
}

func signedPercent(v float64) string {
	if !finite(v) {
		return PlaceholderNA
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return d.StringFixed(2) + "%"
	}
	return "+" + d.StringFixed(2) + "%"
}

func optionalPercent(v *float64) string {
	if v == nil || !finite(*v) {
		return PlaceholderNA
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

func quantity(v float64) string {
	if !finite(v) {
		return PlaceholderNA
	}
	return decimal.NewFromFloat(v).String()
}

func greek(v float64) string {
	if !finite(v) {
		return PlaceholderNA
	}
	return decimal.NewFromFloat(v).StringFixed(4)
}
