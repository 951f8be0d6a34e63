package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"shadowtrade/internal/domain"
)

// NotificationService sends trade and failure events to a Telegram chat.
// Disabled silently when credentials are not configured.
type NotificationService struct {
	botToken   string
	chatID     string
	enabled    bool
	location   *time.Location
	httpClient *http.Client
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(botToken, chatID string) *NotificationService {
	enabled := botToken != "" && chatID != ""

	tz := os.Getenv("TZ")
	if tz == "" {
		tz = "UTC"
	}

	location, err := time.LoadLocation(tz)
	if err != nil {
		location = time.UTC
	}

	return &NotificationService{
		botToken: botToken,
		chatID:   chatID,
		enabled:  enabled,
		location: location,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendTradeOpened sends a shadow open-trade event
func (s *NotificationService) SendTradeOpened(trade *domain.ShadowTrade, openCount int) error {
	if !s.enabled {
		return nil
	}

	sideEmoji := "🟢"
	if trade.Side == domain.DirectionShort {
		sideEmoji = "🔴"
	}

	message := fmt.Sprintf(
		"👻 *SHADOW TRADE OPENED*\n\n"+
			"%s *%s %s*\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"📊 Entry: `$%.4f`\n"+
			"🛑 Stop Loss: `%s`\n"+
			"🎯 Take Profit: `%s`\n"+
			"📈 Confidence: `%.0f%%`\n"+
			"📂 Open Positions: `%d`\n"+
			"🕒 Time: `%s`\n\n"+
			"💡 *Reasoning:*\n%s",
		sideEmoji,
		trade.Side,
		trade.Instrument,
		trade.EntryPrice,
		formatLevel(trade.StopLoss),
		formatLevel(trade.TakeProfit),
		trade.Confidence*100,
		openCount,
		trade.OpenedAt.In(s.location).Format("2006-01-02 15:04:05"),
		truncate(trade.Reasoning, 300),
	)

	return s.sendMessage(message)
}

// SendTradeClosed sends a shadow close-trade event with cumulative stats
func (s *NotificationService) SendTradeClosed(trade *domain.ShadowTrade, account *domain.ShadowAccountState) error {
	if !s.enabled {
		return nil
	}

	var pnl float64
	if trade.PnLUSD != nil {
		pnl = *trade.PnLUSD
	}

	resultEmoji := "✅"
	resultText := "WIN"
	if pnl <= 0 {
		resultEmoji = "❌"
		resultText = "LOSS"
	}

	reason := ""
	if trade.CloseReason != nil {
		reason = *trade.CloseReason
	}

	var exit float64
	if trade.ExitPrice != nil {
		exit = *trade.ExitPrice
	}

	message := fmt.Sprintf(
		"%s *SHADOW TRADE CLOSED: %s*\n\n"+
			"📊 Instrument: `%s`\n"+
			"📈 Side: `%s`\n"+
			"🏁 Reason: `%s`\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"🔵 Entry: `$%.4f`\n"+
			"🔻 Exit: `$%.4f`\n"+
			"💵 Net PnL: `$%+.2f`\n"+
			"💸 Fees: `$%.2f` | Slippage: `$%.2f`\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"🏦 Equity: `$%.2f` (`%+.1f%%`)\n"+
			"🎯 Win Rate: `%.0f%%`",
		resultEmoji,
		resultText,
		trade.Instrument,
		trade.Side,
		reason,
		trade.EntryPrice,
		exit,
		pnl,
		trade.FeesUSD,
		trade.SlippageUSD,
		account.CurrentEquity,
		account.EquityChangePct(),
		account.WinRate()*100,
	)

	return s.sendMessage(message)
}

// SendRejection sends a risk rejection event, tagged distinctly from trades
func (s *NotificationService) SendRejection(signal *domain.TradeSignal, reason string) error {
	if !s.enabled {
		return nil
	}

	message := fmt.Sprintf(
		"🚫 *SIGNAL REJECTED*\n\n"+
			"📊 Instrument: `%s`\n"+
			"📈 Direction: `%s`\n"+
			"📈 Confidence: `%.0f%%`\n"+
			"⚠️ Reason: `%s`",
		signal.Instrument,
		signal.Direction,
		signal.Confidence*100,
		reason,
	)

	return s.sendMessage(message)
}

// SendFailure sends a pipeline failure event, tagged by stage
func (s *NotificationService) SendFailure(instrument, stage string, failure error) error {
	if !s.enabled {
		return nil
	}

	message := fmt.Sprintf(
		"🔥 *PIPELINE FAILURE*\n\n"+
			"📊 Instrument: `%s`\n"+
			"🧩 Stage: `%s`\n"+
			"🕒 Time: `%s`\n\n"+
			"`%s`",
		instrument,
		stage,
		time.Now().In(s.location).Format("2006-01-02 15:04:05"),
		truncate(failure.Error(), 300),
	)

	return s.sendMessage(message)
}

// SendReport sends a periodic shadow performance summary
func (s *NotificationService) SendReport(account *domain.ShadowAccountState, openCount int) error {
	if !s.enabled {
		return nil
	}

	message := fmt.Sprintf(
		"📋 *SHADOW PERFORMANCE REPORT*\n\n"+
			"🏦 Equity: `$%.2f` (`%+.1f%%`)\n"+
			"💵 Total PnL: `$%+.2f`\n"+
			"💸 Fees: `$%.2f` | Slippage: `$%.2f`\n"+
			"🏆 Record: `%dW / %dL` (`%.0f%%`)\n"+
			"📂 Open Positions: `%d`",
		account.CurrentEquity,
		account.EquityChangePct(),
		account.TotalPnL,
		account.TotalFees,
		account.TotalSlippage,
		account.WinningTrades,
		account.LosingTrades,
		account.WinRate()*100,
		openCount,
	)

	return s.sendMessage(message)
}

// sendMessage sends a message to Telegram using the Bot API
func (s *NotificationService) sendMessage(text string) error {
	if !s.enabled {
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	payload := telegramMessage{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

func formatLevel(level *float64) string {
	if level == nil {
		return "none"
	}
	return fmt.Sprintf("$%.4f", *level)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
