package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
)

// NotificationService pushes retrieval reminders to the store's Telegram
// channel so the morning freezer pull happens without anyone opening a
// dashboard. A missing bot token disables it silently.
type NotificationService struct {
	bot    *bot.Bot
	chatID string
	logger *logrus.Logger
}

// NewNotificationService creates the service. With an empty token the
// service is a no-op.
func NewNotificationService(botToken, chatID string, logger *logrus.Logger) *NotificationService {
	var telegramBot *bot.Bot
	if botToken != "" {
		var err error
		telegramBot, err = bot.New(botToken)
		if err != nil {
			logger.WithError(err).Warn("Telegram bot initialization failed, notifications disabled")
			telegramBot = nil
		}
	}
	return &NotificationService{bot: telegramBot, chatID: chatID, logger: logger}
}

// Enabled reports whether notifications will actually be sent.
func (ns *NotificationService) Enabled() bool {
	return ns.bot != nil && ns.chatID != ""
}

func formatKg(v *float64) string {
	if v == nil {
		return "indisponível"
	}
	return fmt.Sprintf("%.2f kg", *v)
}

// FormatRetrievalMessage renders one retrieval report as the reminder text.
func FormatRetrievalMessage(report *models.RetrievalReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Retirada %s — produto %d\n", report.QueryDate.Format("2006-01-02"), report.ProductID)
	fmt.Fprintf(&b, "Retirar hoje: %s\n", formatKg(report.KgToRetrieveToday))
	fmt.Fprintf(&b, "Em descongelamento: %s\n", formatKg(report.KgInThaw))
	fmt.Fprintf(&b, "Pronto para venda: %s\n", formatKg(report.KgReadyForSale))
	fmt.Fprintf(&b, "Estágio: %s", report.LotStage)
	return b.String()
}

// SendRetrievalReminder sends the daily retrieval reminder for one product.
func (ns *NotificationService) SendRetrievalReminder(ctx context.Context, report *models.RetrievalReport) error {
	if !ns.Enabled() {
		return nil
	}

	_, err := ns.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: ns.chatID,
		Text:   FormatRetrievalMessage(report),
	})
	if err != nil {
		return fmt.Errorf("failed to send retrieval reminder: %w", err)
	}

	ns.logger.WithFields(logrus.Fields{
		"product_id": report.ProductID,
		"query_date": report.QueryDate.Format("2006-01-02"),
	}).Info("Retrieval reminder sent")
	return nil
}
