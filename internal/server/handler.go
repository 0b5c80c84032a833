package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petalhr/petal/internal/routing"
	"github.com/petalhr/petal/modules/payrollreview/domain/ports"
	"github.com/petalhr/petal/modules/payrollreview/infrastructure/persistence"
	"github.com/petalhr/petal/modules/payrollreview/presentation/controllers"
	"github.com/petalhr/petal/modules/payrollreview/services"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	TenancyResolver TenancyResolver
	ReviewStore     ports.ReviewStore
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	reviewStore := opts.ReviewStore
	tenancyResolver := opts.TenancyResolver

	if reviewStore == nil {
		dsn := dbDSNFromEnv()
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		reviewStore = persistence.NewReviewPGStore(pool)
	}

	if tenancyResolver == nil {
		tenants, err := loadTenants()
		if err != nil {
			return nil, err
		}
		tenancyResolver = newStaticTenancyResolver(tenants)
	}

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	reviewService := services.NewReviewService(reviewStore)
	reviewController := controllers.ReviewController{
		TenantID: func(ctx context.Context) (string, bool) {
			t, ok := currentTenant(ctx)
			if !ok {
				return "", false
			}
			return t.ID, true
		},
		Principal: func(ctx context.Context) (string, bool) {
			p, ok := currentPrincipal(ctx)
			if !ok {
				return "", false
			}
			return p.UserID, true
		},
		Service: reviewService,
	}

	router := routing.NewRouter()

	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/runs:validate", http.HandlerFunc(reviewController.HandleValidateAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/runs/previous", http.HandlerFunc(reviewController.HandlePreviousRunAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/runs:verify", http.HandlerFunc(reviewController.HandleVerifyAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/runs:verify-all", http.HandlerFunc(reviewController.HandleVerifyAllAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/runs:recalculate", http.HandlerFunc(reviewController.HandleRecalculateAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/verification-statuses", http.HandlerFunc(reviewController.HandleVerificationStatusesAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/overtime-breakdown", http.HandlerFunc(reviewController.HandleOvertimeBreakdownAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/issues:resolve", http.HandlerFunc(reviewController.HandleResolveIssueAPI))

	return withTenantAndPrincipal(tenancyResolver, withAuthz(authorizer, router)), nil
}

// withTenantAndPrincipal resolves the tenant from the request host and
// the caller identity from gateway headers. Internal API routes require
// an identity; everything else passes through and lets the router decide.
func withTenantAndPrincipal(tenants TenancyResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.ClassifyPath(path)

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		tenantDomain := tenantHost(r)
		t, ok, err := tenants.ResolveTenant(r.Context(), tenantDomain)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_resolve_error", "tenant resolve error")
			return
		}
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		r = r.WithContext(withTenant(r.Context(), t))

		if p, ok := principalFromRequest(r); ok {
			r = r.WithContext(withPrincipal(r.Context(), p))
		} else if rc == routing.RouteClassInternalAPI {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}
