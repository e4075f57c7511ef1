package api

import (
	"errors"
	"net/http"

	"github.com/scade330/clinic2-portal/internal/session"
)

func meHandler(sessions *session.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			writeJSON(w, http.StatusOK, session.User{ID: "dev", Name: "Developer"})
			return
		}

		user, err := sessions.Me(r.Context(), r.Header.Get("Cookie"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, user)
		case errors.Is(err, session.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in to continue")
		default:
			writeError(w, http.StatusBadGateway, "session_unavailable", err.Error())
		}
	}
}

func logoutHandler(sessions *session.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := sessions.Logout(r.Context(), r.Header.Get("Cookie")); err != nil {
			writeError(w, http.StatusBadGateway, "session_unavailable", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
