package qrlogin

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageFor(t *testing.T) {
	t.Parallel()

	t.Run("data uri passes through", func(t *testing.T) {
		got, err := ImageFor(Ticket{Image: testImage})
		require.NoError(t, err)
		require.Equal(t, testImage, got)
	})

	t.Run("bare base64 is prefixed", func(t *testing.T) {
		got, err := ImageFor(Ticket{Image: "iVBORw0KGgo="})
		require.NoError(t, err)
		require.Equal(t, "data:image/png;base64,iVBORw0KGgo=", got)
	})

	t.Run("login url is encoded", func(t *testing.T) {
		got, err := ImageFor(Ticket{Image: "https://passport.bilibili.com/h5-app/passport/login/scan?qrcode_key=abc"})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(got, "data:image/png;base64,"))
		png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, "data:image/png;base64,"))
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	})

	t.Run("falls back to ticket url", func(t *testing.T) {
		got, err := ImageFor(Ticket{URL: "https://passport.bilibili.com/qr?k=1"})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(got, "data:image/png;base64,"))
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ImageFor(Ticket{Image: "not base64 !!"})
		require.Error(t, err)
	})

	t.Run("nothing to show", func(t *testing.T) {
		_, err := ImageFor(Ticket{})
		require.ErrorIs(t, err, ErrNoImage)
	})
}

func TestParseUserInfo(t *testing.T) {
	t.Parallel()

	info := ParseUserInfo([]byte(`{"dedeuserid":"1001","nickname":"alice","avatar":"https://i1.hdslb.com/a.png"}`))
	require.NotNil(t, info)
	require.Equal(t, UserInfo{MID: "1001", Nickname: "alice", Face: "https://i1.hdslb.com/a.png"}, *info)

	require.Nil(t, ParseUserInfo(nil))
	require.Nil(t, ParseUserInfo([]byte(`"text"`)))
	require.Nil(t, ParseUserInfo([]byte(`{"other":1}`)))
}
