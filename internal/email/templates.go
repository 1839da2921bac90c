package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

const layoutStyle = `font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 5px;`

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"longDate": longDate,
}).Parse(`
{{define "confirmation"}}
<div style="{{.Style}}">
  <h2 style="color: #4a5568;">Booking Confirmation</h2>
  <p>Dear {{.Booking.GuestName}},</p>
  <p>Thank you for choosing {{.Booking.HotelName}}. Your booking has been confirmed.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="margin-top: 0; color: #4a5568;">Booking Details</h3>
    <p><strong>Booking ID:</strong> {{.Booking.ID}}</p>
    <p><strong>Hotel:</strong> {{.Booking.HotelName}}</p>
    <p><strong>Check-in:</strong> {{longDate .Booking.CheckIn}}</p>
    <p><strong>Check-out:</strong> {{longDate .Booking.CheckOut}}</p>
    <p><strong>Number of Guests:</strong> {{.Booking.NumberOfGuests}}</p>
    <p><strong>Total Amount:</strong> ${{.Booking.TotalAmount}}</p>
  </div>
  <p>We look forward to welcoming you!</p>
  <p>Best regards,<br>The {{.Booking.HotelName}} Team</p>
  <div style="text-align:center;margin:20px 0;">
    <img src="cid:{{.QRName}}" alt="Booking QR Code" style="width:180px;height:180px;"/>
  </div>
  <p><strong>Scan this QR code to view your booking details online in a mobile-friendly format.</strong></p>
  <p>Or <a href="{{.LinkURL}}" target="_blank">click here to view your booking details</a>.</p>
</div>
{{end}}

{{define "cancellation"}}
<div style="{{.Style}}">
  <h2 style="color: #4a5568;">Booking Cancellation</h2>
  <p>Dear {{.Booking.GuestName}},</p>
  <p>We would like to inform you that your booking at {{.Booking.HotelName}} has been cancelled.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="margin-top: 0; color: #4a5568;">Booking Details</h3>
    <p><strong>Booking ID:</strong> {{.Booking.ID}}</p>
    <p><strong>Hotel:</strong> {{.Booking.HotelName}}</p>
    <p><strong>Check-in:</strong> {{longDate .Booking.CheckIn}}</p>
    <p><strong>Check-out:</strong> {{longDate .Booking.CheckOut}}</p>
    <p><strong>Cancellation Reason:</strong> {{if .Reason}}{{.Reason}}{{else}}Not specified{{end}}</p>
  </div>
  <p>If you have any questions regarding this cancellation, please don't hesitate to contact us.</p>
  <p>We hope to have the opportunity to welcome you in the future.</p>
  <p>Best regards,<br>The {{.Booking.HotelName}} Team</p>
</div>
{{end}}

{{define "bill"}}
<div style="{{.Style}}">
  <h2 style="color: #4a5568;">Thank you for staying at {{.HotelName}}!</h2>
  <p>Dear {{.GuestName}},</p>
  <p>Your bill is ready. You can view it online by scanning the QR code below with your mobile device:</p>
  <div style="text-align: center; margin: 20px 0;">
    <img src="cid:{{.QRName}}" alt="Bill QR Code" style="width: 180px; height: 180px;"/>
  </div>
  <p><strong>Scan this QR code to view your bill in a mobile-friendly format.</strong></p>
  <p>Or <a href="{{.LinkURL}}" target="_blank">click here to view your bill</a>.</p>
  <p>We hope you enjoyed your stay!</p>
  <p>Best regards,<br>The {{.HotelName}} Team</p>
</div>
{{end}}
`))

type view struct {
	Style     template.CSS
	Booking   domain.Booking
	Reason    string
	QRName    string
	LinkURL   template.URL
	HotelName string
	GuestName string
}

func ConfirmationSubject(b domain.Booking) string {
	return "Booking Confirmation - " + b.HotelName
}

func CancellationSubject(b domain.Booking) string {
	return "Booking Cancellation - " + b.HotelName
}

func BillSubject(b domain.Booking) string {
	return "Your Bill from " + orDefault(b.HotelName, "Our Hotel")
}

func RenderConfirmation(b domain.Booking, detailsURL string) (string, error) {
	return render("confirmation", view{
		Style:   layoutStyle,
		Booking: b,
		QRName:  BookingQRName,
		LinkURL: template.URL(detailsURL),
	})
}

func RenderCancellation(b domain.Booking, reason string) (string, error) {
	return render("cancellation", view{
		Style:   layoutStyle,
		Booking: b,
		Reason:  reason,
	})
}

func RenderBill(b domain.Booking, billURL string) (string, error) {
	return render("bill", view{
		Style:     layoutStyle,
		QRName:    BillQRName,
		LinkURL:   template.URL(billURL),
		HotelName: orDefault(b.HotelName, "Our Hotel"),
		GuestName: orDefault(b.GuestName, "Guest"),
	})
}

func render(name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func longDate(raw string) string {
	t, err := domain.ParseStayDate(raw)
	if err != nil {
		return raw
	}
	return t.Format("Monday, January 2, 2006")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
