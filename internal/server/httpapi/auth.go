package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/leonj1/scribe-crush/internal/server/config"
	"github.com/leonj1/scribe-crush/internal/server/service"
	cryptohelper "github.com/leonj1/scribe-crush/internal/shared/crypto"
)

const (
	stateCookieName = "scribe_oauth_state"
	stateCookiePath = "/auth/google"
	stateMaxAge     = 600
)

func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Audio Transcription Service API"})
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

// handleGoogleLogin pins a random state to the browser in a sealed cookie and
// sends it to the consent screen.
func (r *Router) handleGoogleLogin(w http.ResponseWriter, req *http.Request) {
	state := uuid.NewString()
	sealed, err := cryptohelper.Seal(r.stateKey, []byte(state), []byte(stateCookieName))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	target, err := r.services.Auth.LoginURL(state)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    sealed,
		Path:     stateCookiePath,
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, target, http.StatusTemporaryRedirect)
}

func (r *Router) handleGoogleCallback(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	// the state cookie is single use
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	if e := q.Get("error"); e != "" {
		writeErrorMessage(w, http.StatusBadRequest, "authentication failed: "+e)
		return
	}
	c, err := req.Cookie(stateCookieName)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "missing oauth state")
		return
	}
	want, err := cryptohelper.Open(r.stateKey, c.Value, []byte(stateCookieName))
	if err != nil || q.Get("state") == "" || string(want) != q.Get("state") {
		writeErrorMessage(w, http.StatusBadRequest, "oauth state mismatch")
		return
	}
	code := q.Get("code")
	if code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	user, token, err := r.services.Auth.CompleteLogin(req.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrUpstream) {
			r.logger.Printf("oauth callback: %v", err)
			writeErrorMessage(w, http.StatusBadRequest, "authentication failed")
			return
		}
		r.writeError(w, req, err)
		return
	}
	r.logger.Printf("user %s signed in", user.ID)

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, req, dashboardURL(r.cfg, token), http.StatusFound)
}

// dashboardURL hands the token to the frontend, in the fragment unless the
// deployment opted into the query string.
func dashboardURL(cfg config.Config, token string) string {
	sep := "#"
	if cfg.TokenDelivery == config.TokenDeliveryQuery {
		sep = "?"
	}
	return cfg.FrontendURL + "/dashboard" + sep + "token=" + url.QueryEscape(token)
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	user, err := r.services.Auth.CurrentUser(req.Context(), getUserID(req.Context()))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
