package qrlogin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// ErrNoImage is returned when a ticket carries neither an image nor a login URL.
var ErrNoImage = errors.New("qrlogin: ticket has no image")

// ImageFor returns a data URI for the ticket's QR code. Data URIs pass through, bare base64
// payloads are prefixed, and login URLs are encoded to PNG.
func ImageFor(ticket Ticket) (string, error) {
	img := strings.TrimSpace(ticket.Image)
	switch {
	case strings.HasPrefix(img, "data:"):
		return img, nil
	case isURL(img):
		return encodeURL(img)
	case img != "":
		if _, err := base64.StdEncoding.DecodeString(img); err != nil {
			return "", fmt.Errorf("qrlogin: image is neither a data URI nor base64: %w", err)
		}
		return "data:image/png;base64," + img, nil
	case isURL(strings.TrimSpace(ticket.URL)):
		return encodeURL(strings.TrimSpace(ticket.URL))
	default:
		return "", ErrNoImage
	}
}

func encodeURL(content string) (string, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qrlogin: encode login url: %w", err)
	}
	png, err := code.PNG(qrImageSize)
	if err != nil {
		return "", fmt.Errorf("qrlogin: render png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://")
}
