package partials

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
)

// QuotaCard is the daily permission quota widget shown on the dashboard and the available-videos page.
type QuotaCard struct {
	Status     *quota.Status
	Error      string
	Role       string
	Limit      string
	Used       int
	Remaining  string
	Percent    int
	Blocked    bool
	ResetTime  string
	RefreshURL string
}

// NewQuotaCard prepares the widget. A nil status renders errText instead. A non-empty refreshURL
// reloads the card whenever a quota-changed event fires.
func NewQuotaCard(status *quota.Status, errText, refreshURL string) QuotaCard {
	card := QuotaCard{Status: status, Error: errText, RefreshURL: refreshURL}
	if status == nil {
		return card
	}
	card.Role = status.Role().Label()
	card.Limit = status.TotalLimit.String()
	card.Used = status.UsedCount
	card.Remaining = status.RemainingLabel()
	card.Percent = status.Percent()
	card.Blocked = !status.Allowed()
	if at, ok := status.ResetAt(); ok {
		card.ResetTime = at.Local().Format("2006-01-02 15:04")
	} else {
		card.ResetTime = status.ResetTime
	}
	return card
}

// QuotaFragment renders the card alone.
func QuotaFragment(card QuotaCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return execute(w, chrome, "quota-card", card)
	})
}
