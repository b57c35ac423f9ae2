package common

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
		return strings.TrimSpace(ip)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// DecodeJSON reads the request body into dst, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return false
	}
	return true
}

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 << 10

// ReadBody reads at most limit bytes of the request body. Oversized bodies get
// a 413 PAYLOAD_TOO_LARGE and other read failures a 400; ok is false once a
// response has been written.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) (raw []byte, ok bool) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return nil, false
		}
		JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read body", nil)
		return nil, false
	}
	return raw, true
}

// URLInt64 parses a positive integer route parameter, writing a 400 on failure.
func URLInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// QueryInt64 parses an optional positive integer query filter. ok is false
// when the value is present but malformed; a 400 has then been written.
func QueryInt64(w http.ResponseWriter, r *http.Request, name string) (value int64, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		JSONError(w, http.StatusBadRequest, "INVALID_FILTER", "invalid "+name, nil)
		return 0, false
	}
	return v, true
}

// WriteList renders a paginated list with the X-Total-Count header.
func WriteList(w http.ResponseWriter, rows any, total int64, params ListParams) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	JSON(w, http.StatusOK, map[string]any{"data": rows, "pagination": params.Pagination(total)})
}

// WriteResult renders v under "data", or err through WriteError. Errors that
// are not AppErrors are reported as a generic 500.
func WriteResult(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, status, map[string]any{"data": v})
}
