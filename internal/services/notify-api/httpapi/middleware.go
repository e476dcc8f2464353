package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/NordCoder/Gorev/internal/obs"
)

const (
	headerRequestID = "X-Request-ID"

	corsAllowHeaders = "Content-Type, Authorization, X-Client-Info, Apikey, X-Request-ID"
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
)

// cors answers preflight requests itself and decorates every other response.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID reuses the caller's X-Request-ID or mints one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
	})
}
