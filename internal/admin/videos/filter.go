package videos

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Sort orders for the library listing.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortTitle  = "title"
	SortSize   = "size"
)

// Filter narrows the library listing.
type Filter struct {
	Query   string
	Status  string
	Quality Quality
	Sort    string
}

// Apply returns the videos matching f in the requested order. The input is not modified.
func (f Filter) Apply(list []Video) []Video {
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(f.Query))
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == "all" {
		status = ""
	}

	out := make([]Video, 0, len(list))
	for _, v := range list {
		if status != "" && v.Status != status {
			continue
		}
		if f.Quality > 0 && v.Quality != f.Quality {
			continue
		}
		if query != "" && !matches(fold, v, query) {
			continue
		}
		out = append(out, v)
	}

	switch f.Sort {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt.Time) })
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool { return fold.String(out[i].Title) < fold.String(out[j].Title) })
	case SortSize:
		sort.SliceStable(out, func(i, j int) bool { return out[i].FileSize > out[j].FileSize })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt.Time) })
	}
	return out
}

func matches(fold cases.Caser, v Video, folded string) bool {
	for _, field := range []string{v.Title, v.OwnerName, v.BVID, v.Tname} {
		if strings.Contains(fold.String(field), folded) {
			return true
		}
	}
	return false
}

// Stats aggregates a video listing.
type Stats struct {
	Count         int
	Completed     int
	Downloading   int
	Failed        int
	TotalSize     int64
	TotalDuration int64
}

// Summarise computes Stats for list.
func Summarise(list []Video) Stats {
	s := Stats{Count: len(list)}
	for _, v := range list {
		switch v.Status {
		case StatusCompleted:
			s.Completed++
		case StatusDownloading:
			s.Downloading++
		case StatusFailed:
			s.Failed++
		}
		s.TotalSize += int64(v.FileSize)
		s.TotalDuration += int64(v.Duration)
	}
	return s
}
