package handler

import (
	"net/http"
	"strings"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/transport/http/middleware"
)

type messageResponse struct {
	Message string `json:"message"`
}

// requireUser writes 401 and returns false when the request has no identity.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return 0, false
	}
	return userID, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return model.Actor{}, false
	}
	return actor, true
}

// viewerID is nil for anonymous callers.
func viewerID(r *http.Request) *int64 {
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

func isAdmin(r *http.Request) bool {
	role, _ := middleware.GetRoleFromContext(r.Context())
	return role == model.RoleAdmin
}

// pathID parses an id URL parameter and writes 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := httputil.PathID(r, name)
	if err != nil {
		httputil.WriteServiceError(w, r, "handler", err)
		return 0, false
	}
	return id, true
}

// page reads the cursor and limit query parameters.
func page(w http.ResponseWriter, r *http.Request, defaultLimit int) (*string, int, bool) {
	limit, err := httputil.QueryInt(r, "limit", defaultLimit)
	if err != nil {
		httputil.WriteServiceError(w, r, "handler", err)
		return nil, 0, false
	}
	return httputil.QueryString(r, "cursor"), limit, true
}

// clientIP prefers proxy headers over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
