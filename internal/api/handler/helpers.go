package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/watchsec/commnode/internal/api/middleware"
	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

const msgDatabaseFailed = "Database operation failed"

// writeStoreError maps a store failure to a response: not found is 404, a
// constraint violation 409, anything else 500. Driver details are logged
// and never sent to the client.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg, conflictMsg string) {
	logger := zerolog.Ctx(r.Context())
	switch core.KindOf(err) {
	case core.KindNotFound:
		response.WriteError(w, http.StatusNotFound, notFoundMsg)
	case core.KindConstraint:
		logger.Info().Err(err).Msg("constraint violation")
		if conflictMsg == "" {
			conflictMsg = "Conflicts with existing data"
		}
		response.WriteError(w, http.StatusConflict, conflictMsg)
	default:
		logger.Error().Err(err).Msg("database operation failed")
		response.WriteError(w, http.StatusInternalServerError, msgDatabaseFailed)
	}
}

// idParam parses the numeric {id} URL parameter, writing a 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := request.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

// credential returns the credential admitted for this request. Its absence
// means the route is not behind RequireAccess.
func credential(w http.ResponseWriter, r *http.Request) (*model.Credential, bool) {
	cred, ok := mw.GetCredential(r.Context())
	if !ok {
		zerolog.Ctx(r.Context()).Error().Str("path", r.URL.Path).Msg("no credential on authenticated route")
		response.WriteError(w, http.StatusUnauthorized, "Invalid API key or insufficient access level")
		return nil, false
	}
	return cred, true
}

// nonEmpty treats an empty string as absent.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
