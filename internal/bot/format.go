package bot

import (
	"fmt"
	"strings"

	"peregovorka/internal/models"
)

const bookingDateLayout = "02.01.2006 15:04"

func helpText(isAdmin bool) string {
	var sb strings.Builder
	sb.WriteString("👋 Привет! Я помогу забронировать переговорку.\n\n")
	sb.WriteString("Доступные команды:\n")
	sb.WriteString("/rooms - список всех переговорок\n")
	sb.WriteString("/available - свободные переговорки сейчас\n")
	sb.WriteString("/book <название> <время> - забронировать\n")
	sb.WriteString("  Пример: /book Марс 15:00-16:00\n")
	sb.WriteString("/release <название> - освободить раньше времени\n")
	sb.WriteString("/status <название> - кто занял переговорку\n")
	sb.WriteString("/mybooks - мои бронирования\n")
	sb.WriteString("/tz - текущий часовой пояс")

	if isAdmin {
		sb.WriteString("\n\n🔧 Администрирование:\n")
		sb.WriteString("/addroom <название> <вместимость> - добавить переговорку\n")
		sb.WriteString("/delroom <название> - удалить переговорку и её брони\n")
		sb.WriteString("/addadmin <user_id> - назначить администратора\n")
		sb.WriteString("/deladmin <user_id> - снять администратора\n")
		sb.WriteString("/admins - список администраторов\n")
		sb.WriteString("/settz <смещение> - часовой пояс, например /settz +3\n")
		sb.WriteString("/export - выгрузить брони в Excel")
	}
	return sb.String()
}

func formatRooms(rooms []*models.Room) string {
	if len(rooms) == 0 {
		return "❌ Переговорки не найдены"
	}

	var sb strings.Builder
	sb.WriteString("📋 Все переговорки:\n\n")
	for _, room := range rooms {
		fmt.Fprintf(&sb, "• %s (вместимость: %d)\n", room.Name, room.Capacity)
	}
	return sb.String()
}

func formatAvailability(av models.Availability) string {
	var sb strings.Builder
	sb.WriteString("🟢 Свободные переговорки:\n\n")

	if len(av.Free) == 0 {
		sb.WriteString("Нет свободных переговорок")
	}
	for i, room := range av.Free {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "• %s (вместимость: %d)", room.Name, room.Capacity)
	}

	if len(av.Occupied) > 0 {
		sb.WriteString("\n\n🔴 Занятые переговорки:\n")
		for _, o := range av.Occupied {
			fmt.Fprintf(&sb, "\n• %s - занят до %s", o.Room.Name, o.Booking.EndTime.Format(models.ClockLayout))
		}
	}
	return sb.String()
}

func formatUserBookings(bookings []models.UserBooking) string {
	if len(bookings) == 0 {
		return "У вас нет активных бронирований"
	}

	var sb strings.Builder
	sb.WriteString("📅 Ваши бронирования:\n\n")
	for _, ub := range bookings {
		marker := "•"
		if ub.Active {
			marker = "▶️"
		}
		fmt.Fprintf(&sb, "%s %s\n  %s - %s\n\n",
			marker,
			ub.Booking.RoomName,
			ub.Booking.StartTime.Format(bookingDateLayout),
			ub.Booking.EndTime.Format(models.ClockLayout))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAdmins(admins []*models.Admin) string {
	if len(admins) == 0 {
		return "Администраторов нет"
	}

	var sb strings.Builder
	sb.WriteString("👤 Администраторы:\n\n")
	for _, a := range admins {
		if a.IsBootstrap() {
			fmt.Fprintf(&sb, "• %d (из конфигурации)\n", a.UserID)
			continue
		}
		fmt.Fprintf(&sb, "• %d (добавил %d, %s)\n", a.UserID, a.AddedBy, a.AddedAt.Format("02.01.2006"))
	}
	return strings.TrimRight(sb.String(), "\n")
}
