package bot

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var (
	// room names may contain spaces; the range may have spaces around "-"
	bookArgsRe    = regexp.MustCompile(`^(.+?)\s+(\S+(?:\s*-\s*\S+)?)$`)
	addRoomArgsRe = regexp.MustCompile(`^(.+?)\s+(-?\d+)$`)
)

const (
	usageBook     = "❌ Неверный формат. Используйте:\n/book <название> <время>\nПример: /book Марс 15:00-16:00"
	usageRelease  = "❌ Неверный формат. Используйте:\n/release <название>\nПример: /release Марс"
	usageStatus   = "❌ Неверный формат. Используйте:\n/status <название>\nПример: /status Марс"
	usageAddRoom  = "❌ Неверный формат. Используйте:\n/addroom <название> <вместимость>\nПример: /addroom Марс 8"
	usageDelRoom  = "❌ Неверный формат. Используйте:\n/delroom <название>\nПример: /delroom Марс"
	usageAddAdmin = "❌ Неверный формат. Используйте:\n/addadmin <user_id>\nПример: /addadmin 123456789"
	usageDelAdmin = "❌ Неверный формат. Используйте:\n/deladmin <user_id>\nПример: /deladmin 123456789"
	usageSetTZ    = "❌ Неверный формат. Используйте:\n/settz <смещение>\nПример: /settz +3"
)

// commandHandler answers one command. A returned error is a failure of the
// bot itself; business refusals are replied as regular messages.
type commandHandler func(ctx context.Context, msg *tgbotapi.Message, args string) error

func (b *Bot) commands() map[string]commandHandler {
	return map[string]commandHandler{
		"start":     b.handleStart,
		"help":      b.handleStart,
		"rooms":     b.handleRooms,
		"available": b.handleAvailable,
		"book":      b.handleBook,
		"release":   b.handleRelease,
		"status":    b.handleStatus,
		"mybooks":   b.handleMyBookings,
		"tz":        b.handleTimezone,
		"addroom":   b.handleAddRoom,
		"delroom":   b.handleDeleteRoom,
		"addadmin":  b.handleAddAdmin,
		"deladmin":  b.handleRemoveAdmin,
		"admins":    b.handleListAdmins,
		"settz":     b.handleSetTimezone,
		"export":    b.handleExport,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	l := zerolog.Ctx(ctx)
	chatID := msg.Chat.ID

	l.Debug().
		Int64("user_id", msg.From.ID).
		Str("username", msg.From.UserName).
		Str("text", msg.Text).
		Msg("Handling message")

	if !msg.IsCommand() {
		b.sendMessage(chatID, "Я понимаю только команды. Список команд: /help")
		return
	}

	cmd := msg.Command()
	handler, ok := b.commands()[cmd]
	if !ok {
		b.sendMessage(chatID, "❓ Неизвестная команда. Список команд: /help")
		return
	}

	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(cmd).Inc()
	}

	if err := handler(ctx, msg, strings.TrimSpace(msg.CommandArguments())); err != nil {
		l.Error().Err(err).Str("command", cmd).Int64("user_id", msg.From.ID).Msg("Command failed")
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		b.sendMessage(chatID, b.getErrorMessage(err))
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	isAdmin, err := b.service.IsAdmin(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, helpText(isAdmin))
	return nil
}

func (b *Bot) handleRooms(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.ListAllRooms(ctx)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, formatRooms(res.Data))
	return nil
}

func (b *Bot) handleAvailable(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.ListAvailableRooms(ctx)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, formatAvailability(res.Data))
	return nil
}

func (b *Bot) handleBook(ctx context.Context, msg *tgbotapi.Message, args string) error {
	match := bookArgsRe.FindStringSubmatch(args)
	if match == nil {
		b.sendMessage(msg.Chat.ID, usageBook)
		return nil
	}

	room := strings.TrimSpace(match[1])
	res, err := b.service.BookRoom(ctx, room, msg.From.ID, displayName(msg.From), match[2])
	if err != nil {
		return err
	}
	if res.Success && b.metrics != nil {
		b.metrics.BookingsCreated.WithLabelValues(room).Inc()
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleRelease(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		b.sendMessage(msg.Chat.ID, usageRelease)
		return nil
	}
	res, err := b.service.ReleaseRoom(ctx, args, msg.From.ID)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		b.sendMessage(msg.Chat.ID, usageStatus)
		return nil
	}
	res, err := b.service.GetRoomStatus(ctx, args)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleMyBookings(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.GetUserBookings(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, formatUserBookings(res.Data))
	return nil
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.GetCurrentTimezone(ctx)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleAddRoom(ctx context.Context, msg *tgbotapi.Message, args string) error {
	match := addRoomArgsRe.FindStringSubmatch(args)
	if match == nil {
		b.sendMessage(msg.Chat.ID, usageAddRoom)
		return nil
	}
	capacity, err := strconv.Atoi(match[2])
	if err != nil {
		b.sendMessage(msg.Chat.ID, usageAddRoom)
		return nil
	}

	res, err := b.service.AddRoom(ctx, msg.From.ID, strings.TrimSpace(match[1]), capacity)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleDeleteRoom(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		b.sendMessage(msg.Chat.ID, usageDelRoom)
		return nil
	}
	res, err := b.service.DeleteRoom(ctx, msg.From.ID, args)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleAddAdmin(ctx context.Context, msg *tgbotapi.Message, args string) error {
	target, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, usageAddAdmin)
		return nil
	}
	res, err := b.service.AddAdmin(ctx, msg.From.ID, target)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleRemoveAdmin(ctx context.Context, msg *tgbotapi.Message, args string) error {
	target, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, usageDelAdmin)
		return nil
	}
	res, err := b.service.RemoveAdmin(ctx, msg.From.ID, target)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

func (b *Bot) handleListAdmins(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.ListAdmins(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if !res.Success {
		b.sendMessage(msg.Chat.ID, res.Message)
		return nil
	}
	b.sendMessage(msg.Chat.ID, formatAdmins(res.Data))
	return nil
}

func (b *Bot) handleSetTimezone(ctx context.Context, msg *tgbotapi.Message, args string) error {
	offset, err := parseOffsetArg(args)
	if err != nil {
		b.sendMessage(msg.Chat.ID, usageSetTZ)
		return nil
	}
	res, err := b.service.SetTimezone(ctx, msg.From.ID, offset)
	if err != nil {
		return err
	}
	b.sendMessage(msg.Chat.ID, res.Message)
	return nil
}

// parseOffsetArg accepts "+3", "-5", "0" and the displayed form "UTC+3".
func parseOffsetArg(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 3 && strings.EqualFold(arg[:3], "utc") {
		arg = arg[3:]
		if arg == "" {
			return 0, nil
		}
	}
	return strconv.Atoi(arg)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
