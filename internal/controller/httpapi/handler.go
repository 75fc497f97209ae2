package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/httpx"
)

type envelopeResponse struct {
	Content string `json:"content"`
}

func (s *HTTPServer) getObject(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	res, err := s.service.GetMetadata(r.Context(), fileID, workOrderFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, fileID, err)
		return
	}

	if res.Object == nil {
		w.Header().Set(common.RetryAfterHeaderName, strconv.FormatInt(res.RetryAfter, 10))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res.Object)
}

func (s *HTTPServer) getEnvelope(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	envelope, err := s.service.GetEnvelope(r.Context(), fileID, workOrderFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, fileID, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, envelopeResponse{Content: base64.StdEncoding.EncodeToString(envelope)})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, fileID string, err error) {
	switch {
	case errors.Is(err, services.ErrWrongFileAuthorization):
		httpx.WriteError(w, http.StatusForbidden, "wrongFileAuthorizationError",
			"Endpoint file ID did not match file ID announced in work order token.")
		return
	case errors.Is(err, services.ErrObjectNotFound):
		httpx.WriteError(w, http.StatusNotFound, "noSuchObject", "The requested DrsObject wasn't found.")
		return
	case errors.Is(err, services.ErrEnvelopeNotFound):
		httpx.WriteError(w, http.StatusNotFound, "envelopeNotFoundError", "The envelope for this file wasn't found.")
		return
	}

	s.logger.Error(r.Context(), "request failed", "file_id", fileID, "error", err)

	switch {
	case errors.Is(err, services.ErrDBInteraction):
		httpx.WriteError(w, http.StatusInternalServerError, "dbInteractionError", "Database interaction failed.")
	case errors.Is(err, services.ErrExternalAPI):
		httpx.WriteError(w, http.StatusInternalServerError, "externalAPIError", "An external dependency failed.")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internalServerError", "An internal server error has occurred.")
	}
}
