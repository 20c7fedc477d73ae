package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"peregovorka/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Бронирования"

var exportHeaders = []string{"ID", "Переговорка", "Пользователь", "ID пользователя", "Начало", "Окончание", "Создано"}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message, _ string) error {
	res, err := b.service.ExportBookings(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if !res.Success {
		b.sendMessage(msg.Chat.ID, res.Message)
		return nil
	}
	if len(res.Data) == 0 {
		b.sendMessage(msg.Chat.ID, "Активных броней для выгрузки нет")
		return nil
	}

	dir, err := os.MkdirTemp("", "peregovorka-export-")
	if err != nil {
		return fmt.Errorf("error creating export directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02_150405")))
	if err := writeBookingsXLSX(path, res.Data); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("file_path", path).Int("bookings", len(res.Data)).Msg("Excel file created")

	if _, err := b.tgService.SendDocument(msg.Chat.ID, path, res.Message); err != nil {
		return fmt.Errorf("error sending export: %w", err)
	}
	return nil
}

// writeBookingsXLSX сохраняет брони в один лист, по строке на бронь.
// Все времена строки выводятся в смещении начала брони.
func writeBookingsXLSX(path string, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for i, bk := range bookings {
		row := []interface{}{
			bk.ID,
			bk.RoomName,
			bk.Username,
			bk.UserID,
			bk.StartTime.Format(bookingDateLayout),
			bk.EndTime.Format(bookingDateLayout),
			bk.CreatedAt.In(bk.StartTime.Location()).Format(bookingDateLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "D", 22)
	_ = f.SetColWidth(exportSheet, "E", "G", 20)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}
