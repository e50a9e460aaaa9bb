package httpx

import (
	"net/http"
	"strings"

	apperrors "github.com/target/coffee-ui/internal/errors"
)

// NotFound answers every unmatched path. Browsers get the error page, API callers a JSON
// body carrying the not_found code.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) || h.T == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: string(apperrors.ErrCodeNotFound),
			Err:     apperrors.NotFoundf("no route for %s", r.URL.Path),
		})
		return
	}

	msg := "There is nothing at this address."
	if strings.HasPrefix(r.URL.Path, ResourcePrefix) {
		msg = "That collection or item does not exist."
	}
	h.renderErrorPage(w, r, errorPage{
		Status:  http.StatusNotFound,
		Title:   "Page not found",
		Message: msg,
	})
}
