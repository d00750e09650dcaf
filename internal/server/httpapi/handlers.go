package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/validation"
	"github.com/go-chi/chi/v5"
)

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req validation.SignupRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, services.OpSignup, err)
		return
	}

	res, err := a.svc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		a.fail(w, r, services.OpSignup, err)
		return
	}

	a.setSessionCookie(w, res.Token)
	respondJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "User registered successfully",
		User:    &res.Account,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, services.OpLogin, err)
		return
	}

	res, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, services.OpLogin, err)
		return
	}

	a.setSessionCookie(w, res.Token)
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Login successful",
		User:    &res.Account,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context()); err != nil {
		a.fail(w, r, services.OpLogout, err)
		return
	}
	a.clearSessionCookie(w)
	respondMessage(w, http.StatusOK, "Logged out successfully")
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req validation.VerifyEmailRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, services.OpVerifyEmail, err)
		return
	}

	user, err := a.svc.VerifyEmail(r.Context(), req.Code)
	if err != nil {
		a.fail(w, r, services.OpVerifyEmail, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Email verified successfully",
		User:    user,
	})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ForgotPasswordRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, services.OpForgotPassword, err)
		return
	}

	if err := a.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		a.fail(w, r, services.OpForgotPassword, err)
		return
	}
	respondMessage(w, http.StatusOK, "Reset email sent")
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ResetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, services.OpResetPassword, err)
		return
	}

	token := chi.URLParam(r, "token")
	if err := a.svc.ResetPassword(r.Context(), token, req.Password); err != nil {
		a.fail(w, r, services.OpResetPassword, err)
		return
	}
	respondMessage(w, http.StatusOK, "Password reset successfully")
}

func (a *API) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := AccountIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, msgNoToken)
		return
	}

	user, err := a.svc.CheckSession(r.Context(), id)
	if err != nil {
		a.fail(w, r, services.OpCheckSession, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, User: user})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health.Ping(r.Context()); err != nil {
			a.logger.Warn(r.Context(), "health check failed", "error", err)
			respondMessage(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	respondMessage(w, http.StatusOK, "Server is healthy and running")
}
