package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/crypt4gh"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/httpx"
)

type extractRequest struct {
	FilePart  string `json:"file_part"`
	PublicKey string `json:"public_key"`
}

type extractResponse struct {
	SubmitterSecret string `json:"submitter_secret"`
	NewSecret       string `json:"new_secret"`
	SecretID        string `json:"secret_id"`
	Offset          int64  `json:"offset"`
}

type envelopeResponse struct {
	Content string `json:"content"`
}

func (s *HTTPServer) extractSecret(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := httpx.ReadJSON(r, s.maxBodySize, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "badRequest", "Request body could not be parsed.")
		return
	}

	filePart, err := base64.StdEncoding.DecodeString(req.FilePart)
	if err != nil || len(filePart) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "malformedOrMissingEnvelopeError",
			"The file part is not valid base64 or is empty.")
		return
	}
	pk, err := crypt4gh.DecodePublicKey(req.PublicKey)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "badRequest", "The public key is invalid.")
		return
	}

	res, err := s.service.Extract(r.Context(), filePart, pk)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer common.WipeByteArray(res.SubmitterSecret)
	defer common.WipeByteArray(res.NewSecret)

	httpx.WriteJSON(w, http.StatusOK, extractResponse{
		SubmitterSecret: base64.StdEncoding.EncodeToString(res.SubmitterSecret),
		NewSecret:       base64.StdEncoding.EncodeToString(res.NewSecret),
		SecretID:        res.SecretID,
		Offset:          res.Offset,
	})
}

func (s *HTTPServer) personalizeEnvelope(w http.ResponseWriter, r *http.Request) {
	secretID := chi.URLParam(r, "secret_id")

	pk, err := crypt4gh.DecodePublicKey(chi.URLParam(r, "client_pk"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "badRequest", "The public key is invalid.")
		return
	}

	envelope, err := s.service.Personalize(r.Context(), secretID, pk)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, envelopeResponse{Content: base64.StdEncoding.EncodeToString(envelope)})
}

func (s *HTTPServer) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "secret_id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrMalformedEnvelope):
		httpx.WriteError(w, http.StatusBadRequest, "malformedOrMissingEnvelopeError",
			"The file part does not start with a valid envelope.")
		return
	case errors.Is(err, services.ErrInvalidPublicKey):
		httpx.WriteError(w, http.StatusBadRequest, "badRequest", "The public key is invalid.")
		return
	case errors.Is(err, services.ErrDecryption):
		httpx.WriteError(w, http.StatusForbidden, "envelopeDecryptionError",
			"The envelope could not be decrypted with the provided key pair.")
		return
	case errors.Is(err, services.ErrSecretNotFound):
		httpx.WriteError(w, http.StatusNotFound, "secretNotFoundError", "The requested secret wasn't found.")
		return
	}

	s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)

	switch {
	case errors.Is(err, services.ErrSecretInsertion):
		httpx.WriteError(w, http.StatusBadGateway, "secretInsertionError", "The secret could not be stored.")
	case errors.Is(err, services.ErrVaultConnection):
		httpx.WriteError(w, http.StatusGatewayTimeout, "vaultConnectionError", "The secret store could not be reached.")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internalServerError", "An internal server error has occurred.")
	}
}
