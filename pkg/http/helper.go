package http

import (
	"net/http"
	"strconv"

	"slotguard/pkg/config"
	apperrors "slotguard/pkg/errors"
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int64
}

// ParsePage reads ?limit= and ?offset=. Missing values fall back to the
// configured defaults; out-of-range values are clamped.
func ParsePage(r *http.Request) (Page, error) {
	query := r.URL.Query()

	var page Page
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, apperrors.InvalidInput("invalid limit parameter").
				WithDetails(map[string]any{"limit": s})
		}
		page.Limit = v
	}

	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Page{}, apperrors.InvalidInput("invalid offset parameter").
				WithDetails(map[string]any{"offset": s})
		}
		page.Offset = v
	}

	page.Limit = config.NormalizePaginationLimit(page.Limit)
	page.Offset = config.NormalizeOffset(page.Offset)
	return page, nil
}
