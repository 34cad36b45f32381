package middleware

import (
	"net/http"

	"github.com/script-licensing-service/internal/httputil"
)

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httputil.RespondError(w, r, status, code, message)
}
