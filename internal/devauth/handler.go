// Package devauth implements the device-authorization flow (C11): session
// state machine, PKCE verification, and JWT access/refresh token issuance.
package devauth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skillnest/registry/internal/httpserver"
	"github.com/skillnest/registry/internal/permissions"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
)

// defaultSessionTTL is the 5-minute expiry spec.md §4.9 assigns to both
// pending and approved sessions.
const defaultSessionTTL = 5 * time.Minute

// defaultScopes is granted to every exchanged token; the registry has no
// scope-selection UI yet.
var defaultScopes = []string{"read"}

// Handler serves /auth/init, /auth/token, /auth/refresh.
type Handler struct {
	sessions *store.SessionStore
	tokens   *store.TokenStore
	users    *store.UserStore
	issuer   *TokenIssuer
	logger   *slog.Logger
}

// NewHandler creates a device-auth Handler.
func NewHandler(sessions *store.SessionStore, tokens *store.TokenStore, users *store.UserStore, issuer *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, tokens: tokens, users: users, issuer: issuer, logger: logger}
}

// Routes returns a chi.Router with the device-auth endpoints mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/init", h.handleInit)
	r.Post("/token", h.handleToken)
	r.Post("/refresh", h.handleRefresh)
	return r
}

type initRequest struct {
	CallbackURL         string `json:"callback_url" validate:"required,url"`
	State               string `json:"state" validate:"required"`
	ClientInfo          string `json:"client_info"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method" validate:"omitempty,oneof=S256 plain"`
}

type initResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now()
	sess := store.AuthSession{
		ID:                  uuid.New(),
		State:               store.SessionPending,
		Code:                generateCode(),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CallbackURL:         req.CallbackURL,
		ClientInfo:          req.ClientInfo,
		ExpiresAt:           now.Add(defaultSessionTTL),
	}
	if err := h.sessions.Create(r.Context(), &sess); err != nil {
		h.logger.Error("creating auth session", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}
	telemetry.DeviceAuthCodesIssuedTotal.Inc()

	httpserver.Respond(w, http.StatusOK, initResponse{
		SessionID: sess.ID.String(),
		ExpiresIn: int(defaultSessionTTL.Seconds()),
	})
}

type tokenRequest struct {
	Code         string `json:"code" validate:"required"`
	SessionID    string `json:"session_id" validate:"required,uuid"`
	CodeVerifier string `json:"code_verifier"`
}

type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	TokenType        string      `json:"token_type"`
	ExpiresIn        int         `json:"expires_in"`
	RefreshToken     string      `json:"refresh_token"`
	RefreshExpiresIn int         `json:"refresh_expires_in"`
	User             userSummary `json:"user"`
}

type userSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sessID, err := uuid.Parse(req.SessionID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid session_id")
		return
	}

	sess, err := h.sessions.FindByID(r.Context(), sessID)
	if err != nil || sess.Code != req.Code {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("invalid_grant").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_grant", "unknown session or code")
		return
	}
	if time.Now().After(sess.ExpiresAt) {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("expired").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "expired", "session has expired")
		return
	}
	if !permissions.CanExchange(sess.State) {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("invalid_state").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_state", "session is not approved")
		return
	}
	if sess.CodeChallenge != "" && !VerifyPKCE(req.CodeVerifier, sess.CodeChallenge, sess.CodeChallengeMethod) {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("invalid_grant").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_grant", "PKCE verification failed")
		return
	}
	if sess.SubjectUserID == nil {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("invalid_state").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_state", "session has no approved subject")
		return
	}

	ok, err := h.sessions.TransitionState(r.Context(), sess.ID, store.SessionApproved, permissions.NextOnExchange(), nil)
	if err != nil {
		h.logger.Error("transitioning session to exchanged", "error", err)
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("internal_error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to finalize session")
		return
	}
	if !ok {
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("invalid_state").Inc()
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_state", "session was already exchanged")
		return
	}

	user, err := h.users.FindByID(r.Context(), *sess.SubjectUserID)
	if err != nil {
		h.logger.Error("loading exchanged session's user", "error", err)
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("internal_error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	resp, err := h.issueTokenPair(r.Context(), user)
	if err != nil {
		h.logger.Error("issuing token pair", "error", err)
		telemetry.DeviceAuthExchangesTotal.WithLabelValues("internal_error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to issue tokens")
		return
	}

	telemetry.DeviceAuthExchangesTotal.WithLabelValues("success").Inc()
	httpserver.Respond(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	hash := HashRefreshToken(req.RefreshToken)
	at, err := h.tokens.FindByHash(r.Context(), hash)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_grant", "unknown or expired refresh token")
		return
	}
	if at.SubjectType != store.GranteeTypeUser {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_grant", "refresh token subject is not a user")
		return
	}

	// Rotate: the old refresh token is revoked and a new pair issued.
	if err := h.tokens.Revoke(r.Context(), at.ID); err != nil {
		h.logger.Warn("revoking rotated refresh token", "error", err)
	}

	user, err := h.users.FindByID(r.Context(), at.SubjectID)
	if err != nil {
		h.logger.Error("loading refresh token's user", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	resp, err := h.issueTokenPair(r.Context(), user)
	if err != nil {
		h.logger.Error("issuing rotated token pair", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to issue tokens")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) issueTokenPair(ctx context.Context, user store.User) (tokenResponse, error) {
	access, err := h.issuer.IssueAccessToken(user.ID.String(), defaultScopes)
	if err != nil {
		return tokenResponse{}, err
	}

	rawRefresh, prefix, hash, err := GenerateRefreshToken()
	if err != nil {
		return tokenResponse{}, err
	}

	expiresAt := time.Now().Add(h.issuer.RefreshTTL)
	rt := store.ApiToken{
		ID:          uuid.New(),
		Hash:        hash,
		Prefix:      prefix,
		SubjectType: store.GranteeTypeUser,
		SubjectID:   user.ID,
		Scopes:      defaultScopes,
		ExpiresAt:   &expiresAt,
	}
	if err := h.tokens.Create(ctx, &rt); err != nil {
		return tokenResponse{}, err
	}

	return tokenResponse{
		AccessToken:      access,
		TokenType:        "Bearer",
		ExpiresIn:        int(h.issuer.AccessTTL.Seconds()),
		RefreshToken:     rawRefresh,
		RefreshExpiresIn: int(h.issuer.RefreshTTL.Seconds()),
		User: userSummary{
			ID:        user.ID.String(),
			Username:  user.Username,
			AvatarURL: user.AvatarURL,
		},
	}, nil
}

func generateCode() string {
	return uuid.New().String()
}
