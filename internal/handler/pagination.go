package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/service"
)

// listParams reads page and page_size. A page that is not a positive
// integer is an invalid page; a bad page_size falls back to the default.
func listParams(r *http.Request) (service.ListParams, error) {
	q := r.URL.Query()
	var p service.ListParams

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, service.ErrInvalidPage
		}
		p.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.PageSize = n
		}
	}
	return p.Normalize(), nil
}

// newPage builds the list envelope for one page of results.
func newPage[S, T any](baseURL string, r *http.Request, params service.ListParams, res *service.ListResult[S], fn func(S) T) dto.Page[T] {
	params = params.Normalize()
	page := dto.Page[T]{
		Count:   res.Total,
		Results: dto.MapSlice(res.Items, fn),
	}
	if int64(params.Page*params.PageSize) < res.Total {
		next := pageURL(baseURL, r, params.Page+1)
		page.Next = &next
	}
	if params.Page > 1 {
		prev := pageURL(baseURL, r, params.Page-1)
		page.Previous = &prev
	}
	return page
}

// pageURL rebuilds the request URL for another page, keeping the other
// query parameters. The first page is addressed without a page parameter.
func pageURL(baseURL string, r *http.Request, page int) string {
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := strings.TrimRight(baseURL, "/") + r.URL.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
