package partials

import (
	"fmt"
	"html/template"
	"reflect"
	"strconv"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/imageproxy"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/helpers"
)

// Funcs is the function map available to every console template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"date":       func(ts time.Time) string { return helpers.Date(ts, "") },
		"relative":   helpers.Relative,
		"count":      func(v any) string { return helpers.Count(toInt64(v)) },
		"bytes":      func(v any) string { return helpers.Bytes(toInt64(v)) },
		"duration":   func(v any) string { return helpers.Duration(toInt64(v)) },
		"truncate":   helpers.Truncate,
		"badge":      helpers.BadgeClass,
		"tone":       func(v any) string { return helpers.StatusTone(fmt.Sprint(v)) },
		"join":       middleware.JoinPath,
		"img":        imageproxy.Rewrite,
		"highlight":  helpers.HighlightSegments,
		"percentBar": func(v int) template.CSS { return template.CSS("width: " + strconv.Itoa(clamp(v)) + "%") },
	}
}

// toInt64 accepts any integer-like value, including named types such as backend.Int.
func toInt64(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float())
	case reflect.String:
		n, _ := strconv.ParseInt(rv.String(), 10, 64)
		return n
	default:
		return 0
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
