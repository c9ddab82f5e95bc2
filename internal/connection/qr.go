package connection

import (
	qrcode "github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
)

// RenderQRDataURL renders a raw QR string to a PNG data URL, the only form in
// which a QR code may ever reach a log line or the control plane (§4.4: "the
// raw QR is never logged").
func RenderQRDataURL(raw string) (string, error) {
	png, err := qrcode.Encode(raw, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return dataurl.New(png, "image/png").String(), nil
}
