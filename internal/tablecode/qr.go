package tablecode

import (
	qrcode "github.com/skip2/go-qrcode"
)

const DefaultQRSize = 512

// QRCode renders url as a PNG QR code of size x size pixels.
func QRCode(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}
