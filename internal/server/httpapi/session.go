package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

type ctxKey struct{}

// AccountIDFromContext returns the account id placed by SessionMiddleware.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithAccountID returns ctx carrying id.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// SessionMiddleware admits requests that carry a valid session cookie and
// answers 401 for the rest.
func (a *API) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(common.SessionCookieName)
		if err != nil || c.Value == "" {
			respondMessage(w, http.StatusUnauthorized, msgNoToken)
			return
		}

		id, err := a.sessions.Verify(c.Value)
		if err != nil {
			if !errors.Is(err, common.ErrTokenExpired) && !errors.Is(err, common.ErrInvalidToken) {
				a.logger.Error(r.Context(), "session verification failed", "error", err)
			}
			respondMessage(w, http.StatusUnauthorized, msgBadToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
	})
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   a.config.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
