package videos

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
)

//go:embed html/*.html
var files embed.FS

var (
	parsePage     = partials.NewPage(files, "html/parse.html")
	batchPage     = partials.NewPage(files, "html/batch.html")
	availablePage = partials.NewPage(files, "html/available.html")
	libraryPage   = partials.NewPage(files, "html/library.html")
)

// Parse renders the parse page.
func Parse(data ParsePageData) templ.Component { return parsePage.Component("Parse video", data) }

// ParseResultFragment renders the metadata card.
func ParseResultFragment(result *ParseResult) templ.Component {
	return parsePage.Fragment("parse-result", result)
}

// ParseErrorFragment renders a failed parse in place of the card.
func ParseErrorFragment(message string) templ.Component {
	return parsePage.Fragment("parse-error", message)
}

// ProcessResultFragment renders the outcome of a process request.
func ProcessResultFragment(result ProcessResult) templ.Component {
	return parsePage.Fragment("process-result", result)
}

// Batch renders the batch page.
func Batch(data BatchPageData) templ.Component { return batchPage.Component("Batch processing", data) }

// BatchResultFragment renders the task table.
func BatchResultFragment(view *BatchView) templ.Component {
	return batchPage.Fragment("batch-result", view)
}

// Available renders the available-videos page.
func Available(data AvailablePageData) templ.Component {
	return availablePage.Component("Available videos", data)
}

// AvailableRowFragment renders one table row.
func AvailableRowFragment(row AvailableRow) templ.Component {
	return availablePage.Fragment("available-row", row)
}

// AvailableAccessFragment renders the access cell of a row after a permission request.
func AvailableAccessFragment(row AvailableRow) templ.Component {
	return availablePage.Fragment("available-access", row)
}

// Library renders the video library.
func Library(data LibraryPageData) templ.Component { return libraryPage.Component("Video library", data) }

// DownloadLinkFragment renders a generated download link.
func DownloadLinkFragment(view DownloadLinkView) templ.Component {
	return libraryPage.Fragment("download-link", view)
}

// PlayerFragment renders an inline player for a generated link.
func PlayerFragment(view DownloadLinkView) templ.Component {
	return libraryPage.Fragment("player", view)
}
