package ui

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	bilibilitpl "github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/bilibili"
)

// AccountsPage renders the linked accounts with the QR login panel.
func (h *Handlers) AccountsPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r, user)
	if !ok {
		return
	}
	data := bilibilitpl.PageData{
		Accounts: h.accountsTable(r, user.Token),
		QR:       h.panel(r.Context(), ctrl.Snapshot()),
	}
	render(w, r, bilibilitpl.Index(data), http.StatusOK)
}

// AccountsTable re-renders the accounts list, e.g. after an accounts-changed event.
func (h *Handlers) AccountsTable(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	render(w, r, bilibilitpl.AccountsFragment(h.accountsTable(r, user.Token)), http.StatusOK)
}

// AccountToggle enables or disables one linked account.
func (h *Handlers) AccountToggle(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	active := strings.EqualFold(strings.TrimSpace(r.PostFormValue("active")), "true")

	msg, err := h.accounts.SetActive(r.Context(), user.Token, id, active)
	if err != nil {
		observability.FromContext(r.Context()).Warn("accounts: toggle failed", zap.String("id", id), zap.Error(err))
		custommw.Toast(w, backend.Message(err, "The account could not be updated."), custommw.ToneDanger)
	} else {
		if msg == "" {
			msg = "Account disabled."
			if active {
				msg = "Account enabled."
			}
		}
		custommw.Toast(w, msg, custommw.ToneSuccess)
	}
	render(w, r, bilibilitpl.AccountsFragment(h.accountsTable(r, user.Token)), http.StatusOK)
}

// AccountDelete unlinks one account.
func (h *Handlers) AccountDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	msg, err := h.accounts.Delete(r.Context(), user.Token, id)
	if err != nil {
		observability.FromContext(r.Context()).Warn("accounts: delete failed", zap.String("id", id), zap.Error(err))
		custommw.Toast(w, backend.Message(err, "The account could not be removed."), custommw.ToneDanger)
	} else {
		custommw.Toast(w, firstNonEmpty(msg, "Account removed."), custommw.ToneSuccess)
	}
	render(w, r, bilibilitpl.AccountsFragment(h.accountsTable(r, user.Token)), http.StatusOK)
}

// QRStart requests a new QR code, replacing any attempt in flight.
func (h *Handlers) QRStart(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r, user)
	if !ok {
		return
	}
	snap, err := ctrl.Start(r.Context())
	if err != nil {
		custommw.Toast(w, snap.Message, custommw.ToneDanger)
	}
	h.renderPanel(w, r, snap)
}

// QRReset abandons the current attempt.
func (h *Handlers) QRReset(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r, user)
	if !ok {
		return
	}
	h.renderPanel(w, r, ctrl.Reset())
}

// QRAutoRefresh stores the operator's auto-refresh interval and applies it to the running attempt.
func (h *Handlers) QRAutoRefresh(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r, user)
	if !ok {
		return
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("seconds")))
	d := time.Duration(seconds) * time.Second
	if err != nil || !h.validChoice(d) {
		custommw.Toast(w, "Choose one of the offered intervals.", custommw.ToneWarning)
		h.renderPanel(w, r, ctrl.Snapshot())
		return
	}
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetAutoRefresh(seconds)
	}
	snap := ctrl.SetAutoRefresh(d)
	if d == 0 {
		custommw.Toast(w, "Auto-refresh turned off.", custommw.ToneInfo)
	} else {
		custommw.Toast(w, fmt.Sprintf("QR codes now refresh every %s.", bilibiliInterval(d)), custommw.ToneInfo)
	}
	h.renderPanel(w, r, snap)
}

// QRStatus is polled by the panel while an attempt is live.
func (h *Handlers) QRStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r, user)
	if !ok {
		return
	}
	snap := ctrl.Snapshot()
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && h.qr.ConsumeAccountsChanged(sess.ID()) {
		custommw.Trigger(w, "accounts-changed", nil)
		name := "Bilibili account"
		if snap.UserInfo != nil && snap.UserInfo.Nickname != "" {
			name = snap.UserInfo.Nickname
		}
		custommw.Toast(w, "Linked "+name+".", custommw.ToneSuccess)
	}
	h.renderPanel(w, r, snap)
}

// controller returns the QR controller of the caller's console session with the stored
// auto-refresh preference applied.
func (h *Handlers) controller(w http.ResponseWriter, r *http.Request, user *custommw.User) (*qrlogin.Controller, bool) {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	ctrl := h.qr.Get(sess.ID(), user.Token)
	if seconds, ok := sess.AutoRefresh(); ok {
		d := time.Duration(seconds) * time.Second
		if h.validChoice(d) && ctrl.Snapshot().AutoRefresh != d {
			ctrl.SetAutoRefresh(d)
		}
	}
	return ctrl, true
}

func (h *Handlers) renderPanel(w http.ResponseWriter, r *http.Request, snap qrlogin.Snapshot) {
	render(w, r, bilibilitpl.QRPanelFragment(h.panel(r.Context(), snap)), http.StatusOK)
}

func (h *Handlers) panel(ctx context.Context, snap qrlogin.Snapshot) bilibilitpl.QRPanel {
	urls := bilibilitpl.PanelURLs{
		Start:       consolePath(ctx, "/bilibili/qr/start"),
		Reset:       consolePath(ctx, "/bilibili/qr/reset"),
		Status:      consolePath(ctx, "/bilibili/qr/status"),
		AutoRefresh: consolePath(ctx, "/bilibili/qr/auto-refresh"),
	}
	return bilibilitpl.NewQRPanel(snap, h.choices, h.qr.PollInterval(), urls, h.qr.Now())
}

func (h *Handlers) accountsTable(r *http.Request, token string) bilibilitpl.AccountsTable {
	url := consolePath(r.Context(), "/bilibili/accounts")
	table := bilibilitpl.AccountsTable{URL: url, BaseURL: url}
	list, err := h.accounts.List(r.Context(), token)
	if err != nil {
		observability.FromContext(r.Context()).Warn("accounts: list failed", zap.Error(err))
		table.Error = backend.Message(err, "Linked accounts could not be loaded.")
		return table
	}
	table.Accounts = list
	table.Summary = accounts.Summarise(list)
	return table
}

func bilibiliInterval(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}

// unavailableQR backs the registry when no backend is wired.
type unavailableQR struct{}

func (unavailableQR) Generate(context.Context, string, string) (qrlogin.Ticket, error) {
	return qrlogin.Ticket{}, backend.ErrNotConfigured
}

func (unavailableQR) Poll(context.Context, string, string) (qrlogin.PollResult, error) {
	return qrlogin.PollResult{}, backend.ErrNotConfigured
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
