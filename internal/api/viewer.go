package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/broker"
)

// Identity headers set by the upstream auth proxy.
const (
	HeaderUserID        = "X-User-ID"
	HeaderOrgID         = "X-Org-ID"
	HeaderOrgAdmin      = "X-Org-Admin"
	HeaderPaymentIntent = "X-Payment-Intent"
)

type viewerKey struct{}

// requireViewer reads the caller identity from headers and rejects
// requests without a user.
func requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := broker.Viewer{
			UserID:           r.Header.Get(HeaderUserID),
			OrganizationID:   r.Header.Get(HeaderOrgID),
			IsAdmin:          headerBool(r, HeaderOrgAdmin),
			HasPaymentIntent: headerBool(r, HeaderPaymentIntent),
		}
		if v.UserID == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: apperr.NewInvalidRequest(HeaderUserID + " header is required")})
			return
		}
		if v.OrganizationID == "" {
			v.IsAdmin = false
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

func viewerFrom(ctx context.Context) broker.Viewer {
	v, _ := ctx.Value(viewerKey{}).(broker.Viewer)
	return v
}

func headerBool(r *http.Request, name string) bool {
	b, err := strconv.ParseBool(r.Header.Get(name))
	return err == nil && b
}
