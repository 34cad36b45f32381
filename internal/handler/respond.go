package handler

import (
	"net/http"

	"github.com/script-licensing-service/internal/httputil"
)

// RespondJSON writes a success envelope with the given status code.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	httputil.RespondJSON(w, r, status, data)
}

// RespondError writes an error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httputil.RespondError(w, r, status, code, message)
}

func parsePagination(r *http.Request) (int, int, error) {
	return httputil.ParsePagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))
}
