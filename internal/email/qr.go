package email

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const (
	BookingQRName = "booking-details-qr.png"
	BillQRName    = "bill-qr.png"
)

// QRCode encodes content as a 256px PNG ready to embed.
func QRCode(name, content string) (Attachment, error) {
	if content == "" {
		return Attachment{}, fmt.Errorf("qr code: empty content")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return Attachment{}, fmt.Errorf("qr code: %w", err)
	}
	return Attachment{Name: name, ContentType: "image/png", Data: png}, nil
}
