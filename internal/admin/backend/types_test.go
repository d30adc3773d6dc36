package backend_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

func TestLooseTypes(t *testing.T) {
	t.Parallel()

	var payload struct {
		Active  backend.Flag `json:"active"`
		Flag    backend.Flag `json:"flag"`
		ID      backend.ID   `json:"id"`
		Str     backend.ID   `json:"str"`
		Size    backend.Int  `json:"size"`
		Missing backend.Int  `json:"missing"`
		Unix    backend.Time `json:"unix"`
		SQL     backend.Time `json:"sql"`
	}
	body := `{"active":1,"flag":"true","id":12,"str":"abc","size":"2048","missing":null,"unix":1700000000,"sql":"2025-03-01 08:30:00"}`
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	require.True(t, bool(payload.Active))
	require.True(t, bool(payload.Flag))
	require.Equal(t, "12", payload.ID.String())
	require.Equal(t, "abc", payload.Str.String())
	require.EqualValues(t, 2048, payload.Size)
	require.EqualValues(t, 0, payload.Missing)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), payload.Unix.Time)
	require.Equal(t, 8, payload.SQL.Hour())
}
