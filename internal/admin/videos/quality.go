package videos

import (
	"strconv"
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// Quality is a Bilibili stream quality code.
type Quality int

const (
	Quality4K      Quality = 120
	Quality1080P60 Quality = 116
	Quality1080PP  Quality = 112
	Quality1080P   Quality = 80
	Quality720P60  Quality = 74
	Quality720P    Quality = 64
	Quality480P    Quality = 32
	Quality360P    Quality = 16

	DefaultQuality = Quality1080P
)

// Qualities lists the ladder from best to worst.
var Qualities = []Quality{Quality4K, Quality1080P60, Quality1080PP, Quality1080P, Quality720P60, Quality720P, Quality480P, Quality360P}

var qualityLabels = map[Quality]string{
	Quality4K:      "4K Ultra HD",
	Quality1080P60: "1080P 60fps",
	Quality1080PP:  "1080P+ high bitrate",
	Quality1080P:   "1080P HD",
	Quality720P60:  "720P 60fps",
	Quality720P:    "720P",
	Quality480P:    "480P",
	Quality360P:    "360P",
}

// Label returns the display name, or the raw code for unknown values.
func (q Quality) Label() string {
	if label, ok := qualityLabels[q]; ok {
		return label
	}
	if q <= 0 {
		return "Unknown"
	}
	return strconv.Itoa(int(q))
}

// Valid reports whether q is on the ladder.
func (q Quality) Valid() bool {
	_, ok := qualityLabels[q]
	return ok
}

// UnmarshalJSON accepts numbers and numeric strings.
func (q *Quality) UnmarshalJSON(data []byte) error {
	var n backend.Int
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	*q = Quality(n)
	return nil
}

// ParseQuality reads a form value. Empty input selects DefaultQuality.
func ParseQuality(raw string) (Quality, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultQuality, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultQuality, false
	}
	q := Quality(n)
	if !q.Valid() {
		return DefaultQuality, false
	}
	return q, true
}

// Mode selects which streams the backend downloads.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeVideoAudio Mode = "video_audio"
	ModeVideoOnly  Mode = "video_only"
	ModeAudioOnly  Mode = "audio_only"

	DefaultMode = ModeAuto
)

// Modes lists the selectable download modes.
var Modes = []Mode{ModeAuto, ModeVideoAudio, ModeVideoOnly, ModeAudioOnly}

// Label returns the display name.
func (m Mode) Label() string {
	switch m {
	case ModeAuto:
		return "Automatic"
	case ModeVideoAudio:
		return "Video + audio (merged)"
	case ModeVideoOnly:
		return "Video only"
	case ModeAudioOnly:
		return "Audio only"
	default:
		return string(m)
	}
}

// ParseMode reads a form value. Empty input selects DefaultMode.
func ParseMode(raw string) (Mode, bool) {
	m := Mode(strings.TrimSpace(raw))
	if m == "" {
		return DefaultMode, true
	}
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return DefaultMode, false
}
