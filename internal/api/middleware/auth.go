package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

type contextKey string

const credentialKey contextKey = "credential"

const (
	msgMalformedAuth = "Invalid Authorization header format"
	msgUnauthorized  = "Invalid API key or insufficient access level"
	msgLookupFailed  = "Authorization lookup failed"
)

// ErrMalformedAuth is returned for a missing Authorization header or a scheme
// other than Bearer.
var ErrMalformedAuth = errors.New("malformed authorization header")

// CredentialStore resolves presented secrets. core.CredentialService
// implements it.
type CredentialStore interface {
	FindByKeyWithMinLevel(ctx context.Context, secret string, level int) (*model.Credential, error)
	TouchLastUsed(ctx context.Context, secret string) error
}

// ParseAuthorization extracts the secret from a "Bearer <secret>" header. The
// scheme is matched case-insensitively; the secret is returned as sent. An
// empty secret is well-formed and fails the key lookup like any unknown key.
func ParseAuthorization(header string) (string, error) {
	scheme, secret, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformedAuth
	}
	return secret, nil
}

// RequireAccess admits a request only when its Bearer secret belongs to a
// credential whose access level passes the check for required. Admitted
// requests carry the credential in their context and refresh its last-used
// time; a failed refresh is logged and does not deny the request.
func RequireAccess(store CredentialStore, required int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			secret, err := ParseAuthorization(r.Header.Get("Authorization"))
			if err != nil {
				response.WriteError(w, http.StatusBadRequest, msgMalformedAuth)
				return
			}

			cred, err := store.FindByKeyWithMinLevel(r.Context(), secret, required)
			if errors.Is(err, core.ErrNotFound) {
				logger.Info().Int("required_level", required).Msg("access denied")
				response.WriteError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if err != nil {
				logger.Error().Err(err).Msg("credential lookup failed")
				response.WriteError(w, http.StatusInternalServerError, msgLookupFailed)
				return
			}

			if err := store.TouchLastUsed(r.Context(), secret); err != nil {
				logger.Warn().Err(err).Int64("api_key_id", cred.ID).Msg("failed to update api key last_used_at")
			}

			noteCredential(r.Context(), cred.ID)
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("api_key_id", cred.ID).Int("access_level", cred.AccessLevel)
			})
			next.ServeHTTP(w, r.WithContext(WithCredential(r.Context(), cred)))
		})
	}
}

// WithCredential returns ctx carrying cred as the admitted credential.
func WithCredential(ctx context.Context, cred *model.Credential) context.Context {
	return context.WithValue(ctx, credentialKey, cred)
}

// GetCredential returns the credential admitted by RequireAccess.
func GetCredential(ctx context.Context) (*model.Credential, bool) {
	cred, ok := ctx.Value(credentialKey).(*model.Credential)
	return cred, ok && cred != nil
}
