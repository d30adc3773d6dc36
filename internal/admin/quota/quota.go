// Package quota models the per-role daily limit on download-permission requests.
package quota

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// Limit is a daily request allowance. The backend reports unlimited tiers with a
// non-numeric marker such as "无限制".
type Limit struct {
	n         int
	unlimited bool
}

// Of returns a finite limit.
func Of(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

// Unlimited returns a limit without a ceiling.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// IsUnlimited reports whether the limit has no ceiling.
func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value returns the numeric limit and false when unlimited.
func (l Limit) Value() (int, bool) {
	if l.unlimited {
		return 0, false
	}
	return l.n, true
}

// String renders the limit for display.
func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(l.n)
}

// UnmarshalJSON accepts a number, a numeric string or any other string (unlimited).
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = Limit{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("quota: decode limit: %w", err)
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*l = Of(n)
			return nil
		}
		*l = Unlimited()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("quota: decode limit: %w", err)
	}
	if f < 0 {
		*l = Unlimited()
		return nil
	}
	*l = Of(int(f))
	return nil
}

// MarshalJSON mirrors the backend representation.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal("无限制")
	}
	return json.Marshal(l.n)
}

// Tier returns the daily allowance for a role: 0/1/10/100 for roles 0-3, unlimited for 4.
func Tier(role rbac.Role) Limit {
	switch rbac.NormaliseRole(string(role)) {
	case rbac.RoleUser:
		return Of(1)
	case rbac.RoleAdmin:
		return Of(10)
	case rbac.RoleSuperAdmin:
		return Of(100)
	case rbac.RoleUnlimited:
		return Unlimited()
	default:
		return Of(0)
	}
}

// Status is the daily-limit report returned by the backend.
type Status struct {
	UserRole   string `json:"userRole"`
	TotalLimit Limit  `json:"totalLimit"`
	UsedCount  int    `json:"usedCount"`
	CanApply   bool   `json:"canApply"`
	ResetTime  string `json:"resetTime,omitempty"`
}

// UnmarshalJSON tolerates numeric roles and ignores the backend's own remaining field,
// which may be non-numeric for unlimited tiers.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserRole   json.RawMessage `json:"userRole"`
		TotalLimit Limit           `json:"totalLimit"`
		UsedCount  json.Number     `json:"usedCount"`
		CanApply   bool            `json:"canApply"`
		ResetTime  string          `json:"resetTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("quota: decode status: %w", err)
	}
	used := 0
	if raw.UsedCount != "" {
		if n, err := raw.UsedCount.Int64(); err == nil {
			used = int(n)
		}
	}
	*s = Status{
		UserRole:   strings.Trim(strings.TrimSpace(string(raw.UserRole)), `"`),
		TotalLimit: raw.TotalLimit,
		UsedCount:  used,
		CanApply:   raw.CanApply,
		ResetTime:  raw.ResetTime,
	}
	return nil
}

// Remaining returns the requests left today and false when the limit is unlimited.
func (s Status) Remaining() (int, bool) {
	limit, ok := s.TotalLimit.Value()
	if !ok {
		return 0, false
	}
	if left := limit - s.UsedCount; left > 0 {
		return left, true
	}
	return 0, true
}

// RemainingLabel renders Remaining for display.
func (s Status) RemainingLabel() string {
	left, ok := s.Remaining()
	if !ok {
		return "unlimited"
	}
	return strconv.Itoa(left)
}

// Allowed reports whether another permission request may be issued.
func (s Status) Allowed() bool {
	if !s.CanApply {
		return false
	}
	limit, ok := s.TotalLimit.Value()
	if !ok {
		return true
	}
	return s.UsedCount < limit
}

// Role returns the normalised role reported by the backend.
func (s Status) Role() rbac.Role {
	return rbac.NormaliseRole(s.UserRole)
}

// ResetAt parses ResetTime when it is RFC 3339; ok is false otherwise.
func (s Status) ResetAt() (time.Time, bool) {
	if strings.TrimSpace(s.ResetTime) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s.ResetTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Percent returns usage as a 0-100 value for progress bars. Unlimited tiers report 0.
func (s Status) Percent() int {
	limit, ok := s.TotalLimit.Value()
	if !ok || limit <= 0 {
		if ok && limit == 0 {
			return 100
		}
		return 0
	}
	pct := s.UsedCount * 100 / limit
	if pct > 100 {
		return 100
	}
	return pct
}
