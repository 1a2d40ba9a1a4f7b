package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bailbond/checkin-service/internal/models"
	"bailbond/checkin-service/internal/store"
)

type authContextKey struct{}

// AuthMiddleware resolves the caller's session. Sessions are issued elsewhere;
// this service only reads them.
func AuthMiddleware(sessions store.CheckInStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := sessions.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (store.Session, bool) {
	session, ok := ctx.Value(authContextKey{}).(store.Session)
	return session, ok
}

// requireClientAccess lets staff and admins through for any client and
// restricts client sessions to their own record.
func requireClientAccess(w http.ResponseWriter, r *http.Request, clientID int64) bool {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return false
	}
	switch session.Role {
	case models.RoleStaff, models.RoleAdmin:
		return true
	case models.RoleClient:
		if session.ClientID == clientID {
			return true
		}
	}
	writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "client access denied")
	return false
}

func requireStaff(w http.ResponseWriter, r *http.Request) bool {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return false
	}
	if session.Role != models.RoleStaff && session.Role != models.RoleAdmin {
		writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "staff access required")
		return false
	}
	return true
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	default:
		return r.Method == http.MethodOptions
	}
}
