package bilibili

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
)

// PageData is the accounts page: linked accounts plus the QR login panel.
type PageData struct {
	Accounts AccountsTable
	QR       QRPanel
}

// AccountsTable is the swappable accounts list.
type AccountsTable struct {
	Accounts []accounts.Account
	Summary  accounts.Summary
	Error    string
	// URL reloads the table when the accounts-changed event fires.
	URL     string
	BaseURL string
}

// QRPanel renders one controller snapshot.
type QRPanel struct {
	Status      string
	Message     string
	Image       template.URL
	Polling     bool
	Terminal    bool
	Idle        bool
	// Failure is the error kind behind an expired or failed attempt.
	Failure     string
	UserName    string
	UserFace    string
	RefreshIn   int
	PollEvery   string
	AutoRefresh int
	Choices     []AutoRefreshChoice

	StartURL       string
	ResetURL       string
	StatusURL      string
	AutoRefreshURL string
}

// AutoRefreshChoice is one option of the auto-refresh selector.
type AutoRefreshChoice struct {
	Seconds  int
	Label    string
	Selected bool
}

// PanelURLs are the QR endpoints wired into the panel.
type PanelURLs struct {
	Start       string
	Reset       string
	Status      string
	AutoRefresh string
}

// NewQRPanel converts a snapshot into panel state. now anchors the auto-refresh countdown.
func NewQRPanel(snap qrlogin.Snapshot, choices []time.Duration, poll time.Duration, urls PanelURLs, now time.Time) QRPanel {
	p := QRPanel{
		Status:         string(snap.Status),
		Message:        snap.Message,
		Image:          qrImageURL(snap.Image),
		Polling:        snap.Polling(),
		Terminal:       snap.Status.Terminal(),
		Idle:           snap.Status == qrlogin.StatusIdle,
		Failure:        string(backend.KindOf(snap.Err())),
		AutoRefresh:    int(snap.AutoRefresh / time.Second),
		PollEvery:      fmt.Sprintf("every %ds", max(1, int(poll/time.Second))),
		StartURL:       urls.Start,
		ResetURL:       urls.Reset,
		StatusURL:      urls.Status,
		AutoRefreshURL: urls.AutoRefresh,
	}
	if p.AutoRefresh < 0 {
		p.AutoRefresh = 0
	}
	if snap.UserInfo != nil {
		p.UserName = snap.UserInfo.Nickname
		p.UserFace = snap.UserInfo.Face
	}
	if at, ok := snap.RefreshAt(); ok {
		if left := at.Sub(now); left > 0 {
			p.RefreshIn = int((left + time.Second - 1) / time.Second)
		}
	}
	for _, d := range choices {
		seconds := int(d / time.Second)
		p.Choices = append(p.Choices, AutoRefreshChoice{
			Seconds:  seconds,
			Label:    choiceLabel(d),
			Selected: seconds == p.AutoRefresh,
		})
	}
	return p
}

// qrImageURL admits only image data URIs, which is all qrlogin.ImageFor produces.
func qrImageURL(raw string) template.URL {
	if strings.HasPrefix(raw, "data:image/") {
		return template.URL(raw)
	}
	return ""
}

func choiceLabel(d time.Duration) string {
	if d <= 0 {
		return "Off"
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}
