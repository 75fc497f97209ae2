package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/auth"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/crypt4gh"
	"github.com/dmitrijs2005/ghgadelivery/internal/httpx"
)

type ctxKey string

const workOrderKey ctxKey = "workOrder"

// workOrderMiddleware requires a valid work-order bearer token and stores
// the derived services.WorkOrder in the request context. Matching the
// token's file against the path is left to the service.
func (s *HTTPServer) workOrderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "missingAuthorizationError", "Missing work order token.")
			return
		}

		claims, err := auth.ParseToken(token, s.jwtSecret)
		if err != nil {
			s.logger.Info(r.Context(), "rejected work order token", "error", err)
			httpx.WriteError(w, http.StatusUnauthorized, "missingAuthorizationError", "Invalid work order token.")
			return
		}

		pk, err := crypt4gh.DecodePublicKey(claims.UserPublicKey)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "missingAuthorizationError", "Invalid public key in work order token.")
			return
		}

		wo := &services.WorkOrder{FileID: claims.FileID, PublicKey: pk}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workOrderKey, wo)))
	})
}

func workOrderFrom(ctx context.Context) *services.WorkOrder {
	wo, _ := ctx.Value(workOrderKey).(*services.WorkOrder)
	return wo
}
