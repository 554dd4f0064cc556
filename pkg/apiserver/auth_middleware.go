package apiserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type ContextKey string

const TenantKey ContextKey = "tenant"

func tokenAuthMiddleware(b backend.Backend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logrus.Debugf("request URL path: %s", r.URL.Path)
			authorization := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authorization, "Bearer ")
			slug, ok := mux.Vars(r)["tenant"]
			if !ok {
				writeError(w, http.StatusForbidden, errors.New("must specify tenant"))
				return
			}

			tenant, err := b.GetTenant(slug)
			if err != nil {
				logrus.Errorf("failed to get token hash from DB for %v, err: %v", slug, err)
				writeError(w, http.StatusForbidden, errors.New("forbidden to use"))
				return
			}

			if tenant.TokenHash == "" {
				writeError(w, http.StatusForbidden, errors.New("forbidden to use"))
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(tenant.TokenHash), []byte(token)); err != nil {
				writeError(w, http.StatusForbidden, errors.New("forbidden to use"))
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tenantFromContext(ctx context.Context) db.Tenant {
	tenant, _ := ctx.Value(TenantKey).(db.Tenant)
	return tenant
}
