// handler.go

package gourdianauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const maxRequestBody = 1 << 16

type createRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type handler struct {
	auth   *Authenticator
	logger *slog.Logger
}

// NewHandler returns the JSON transport for the authenticator:
//
//	POST /auth/create         {"login","password"}  -> RegistrationResponse
//	POST /auth/refresh        {"refreshToken"}      -> RegistrationResponse
//	POST /auth/verify         {"token"}             -> VerificationResponse
//	GET  /auth/token-payload                        -> AccessTokenPayload
//
// Every route runs behind gate.Middleware.
func NewHandler(auth *Authenticator, gate *RequestAuthGate, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{auth: auth, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/create", h.create)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/verify", h.verify)
	mux.HandleFunc("GET /auth/token-payload", h.tokenPayload)

	return gate.Middleware(mux)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.auth.Create(r.Context(), req.Login, req.Password))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.auth.Refresh(r.Context(), req.RefreshToken))
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.auth.VerifyToken(r.Context(), req.Token))
}

func (h *handler) tokenPayload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auth.TokenPayload(r.Context()))
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.logger.DebugContext(r.Context(), "rejecting request body",
			slog.String("path", r.URL.Path),
			slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, errorBody{Name: "BadRequest", Msg: "invalid JSON body"})
		return false
	}
	return true
}

// writeJSON disables caching: most responses carry tokens or identities.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
