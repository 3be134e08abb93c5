package notify

import (
	"encoding/json"
	"fmt"

	"calbook/internal/events"
	"calbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier pushes terminal booking outcomes to an operator chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(botToken string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) NotifyBookingCompleted(booking *models.Booking) error {
	text := fmt.Sprintf("✅ Booking %s completed\nEmail: %s", booking.UUID, booking.Email)
	if booking.BookedFor != nil {
		text += fmt.Sprintf("\nBooked for: %s", booking.BookedFor.Format("2006-01-02 15:04"))
	}
	return n.send(text)
}

func (n *TelegramNotifier) NotifyBookingFailed(booking *models.Booking, reason string) error {
	text := fmt.Sprintf("❌ Booking %s failed\nEmail: %s\nReason: %s", booking.UUID, booking.Email, reason)
	return n.send(text)
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SubscribeToEvents wires the notifier onto the bus so terminal bookings are
// reported without the service layer knowing about telegram.
func (n *TelegramNotifier) SubscribeToEvents(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCompleted, func(event *events.Event) error {
		booking, _, err := decodePayload(event)
		if err != nil {
			return err
		}
		if err := n.NotifyBookingCompleted(booking); err != nil {
			n.logger.Warn().Err(err).Str("booking_uuid", booking.UUID).Msg("failed to notify booking completed")
		}
		return nil
	})

	bus.Subscribe(events.EventBookingFailed, func(event *events.Event) error {
		booking, reason, err := decodePayload(event)
		if err != nil {
			return err
		}
		if err := n.NotifyBookingFailed(booking, reason); err != nil {
			n.logger.Warn().Err(err).Str("booking_uuid", booking.UUID).Msg("failed to notify booking failed")
		}
		return nil
	})
}

func decodePayload(event *events.Event) (*models.Booking, string, error) {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, "", err
	}

	booking := &models.Booking{
		ID:        payload.BookingID,
		UUID:      payload.BookingUUID,
		Email:     payload.Email,
		Status:    payload.Status,
		BookedFor: payload.BookedFor,
	}
	return booking, payload.Reason, nil
}
