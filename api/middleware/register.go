package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/intellisales-pos/api/responses"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
)

const cashierIDHeader = "X-Cashier-Id"

// RegisterContext lifts the {registerID} route parameter and the optional
// cashier header into the request context and its log fields.
func RegisterContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			registerID := strings.TrimSpace(chi.URLParam(r, "registerID"))
			if registerID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "register id is required"))
				return
			}

			ctx := WithRegisterID(r.Context(), registerID)
			if logg != nil {
				ctx = logg.WithRegisterID(ctx, registerID)
			}
			if cashierID := strings.TrimSpace(r.Header.Get(cashierIDHeader)); cashierID != "" {
				ctx = WithCashierID(ctx, cashierID)
				if logg != nil {
					ctx = logg.WithCashierID(ctx, cashierID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
