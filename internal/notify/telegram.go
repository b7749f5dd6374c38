package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramSink 通过 Telegram bot 投递通知。
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logrus.Entry
}

// NewTelegramSink 创建 Telegram 通道。token 或 chatID 缺失时返回 (nil, nil)，
// 调用方把 nil 当作通道未配置。
func NewTelegramSink(token string, chatID int64, logger *logrus.Logger) (*TelegramSink, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramSink{
		bot:    bot,
		chatID: chatID,
		log:    logger.WithField("component", "telegram"),
	}, nil
}

// Send 投递一条通知。空消息不投递。
func (s *TelegramSink) Send(message, title string) bool {
	if s == nil || s.bot == nil {
		return false
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	text := message
	if title != "" {
		text = title + "\n" + message
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		s.log.WithError(err).Error("Failed to send Telegram message")
		return false
	}
	s.log.WithField("title", title).Debug("Telegram message sent")
	return true
}
