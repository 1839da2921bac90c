package export

import (
	"fmt"
	"io"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Bookings"

var headers = []string{
	"Booking ID", "Hotel", "Guest", "Email", "Phone", "Guests",
	"Check-in", "Check-out", "Meal package", "Guide", "Total",
	"Status", "Payment ID", "Cancellation reason", "Created at",
}

// WriteBookings renders one row per booking and streams the workbook to w.
func WriteBookings(w io.Writer, bookings []domain.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("error removing default sheet: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, b := range bookings {
		row := i + 2
		paymentID := ""
		if b.PaymentID != nil {
			paymentID = *b.PaymentID
		}
		values := []interface{}{
			b.ID.String(), b.HotelName, b.GuestName, b.Email, b.Phone, int(b.NumberOfGuests),
			b.CheckIn, b.CheckOut, string(b.MealPackage), b.Guide, float64(b.TotalAmount),
			string(b.Status), paymentID, b.CancellationReason, b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "O", 18); err != nil {
		return err
	}
	return f.Write(w)
}
