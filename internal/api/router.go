package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	_ "loan-ledger/docs"
	"loan-ledger/internal/api/handler"
	"loan-ledger/internal/api/handler/dto"
	mw "loan-ledger/internal/api/middleware"
	"loan-ledger/internal/config"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/domain/loan"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// SetupRouter wires every route. ctx bounds the background work of the middleware.
func SetupRouter(ctx context.Context, svc ledger.Service, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(ctx, router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupAuthRoutes(router, cfg, logger)
	setupLedgerRoutes(router, svc, cfg, logger)
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(ctx context.Context, router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(ctx, cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupLedgerRoutes(router *chi.Mux, svc ledger.Service, cfg *config.Config, logger *slog.Logger) {
	defaultTerms, err := loan.ParseTerms(cfg.Loan.DefaultTerms)
	if err != nil {
		logger.Warn("Invalid default terms in configuration, using Monthly", "terms", cfg.Loan.DefaultTerms)
		defaultTerms = loan.DefaultTerms
	}

	borrowers := handler.NewBorrowerHandler(svc, loanDefaults(cfg.Loan, logger), cfg.Worklist.TopN, logger)
	reports := handler.NewReportHandler(svc, logger)
	tools := handler.NewToolHandler(defaultTerms, svc.Now, logger)
	backups := handler.NewBackupHandler(svc, int64(cfg.Storage.MaxBytes)*2, logger)
	auth := mw.AuthMiddleware(cfg.Server.Auth, logger)

	router.Route("/borrowers", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", borrowers.CreateBorrower)
		r.Get("/", borrowers.ListBorrowers)
		r.Route("/{borrowerID}", func(r chi.Router) {
			r.Get("/", borrowers.GetBorrower)
			r.Patch("/", borrowers.UpdateBorrower)
			r.Delete("/", borrowers.DeleteBorrower)
			r.Post("/loans", borrowers.AddLoan)
			r.Post("/loans/{loanID}/payments", borrowers.RecordPayment)
		})
	})

	router.Route("/reports", func(r chi.Router) {
		r.Use(auth)
		r.Get("/dashboard", reports.Dashboard)
		r.Get("/books/{book}", reports.Book)
		r.Get("/export.csv", reports.ExportCSV)
		r.Get("/collection-list", reports.CollectionList)
	})

	router.Route("/tools", func(r chi.Router) {
		r.Use(auth)
		r.Post("/loan-quote", tools.LoanQuote)
		r.Post("/date-add", tools.DateAdd)
	})

	router.Group(func(r chi.Router) {
		r.Use(auth)
		r.Get("/backup", backups.Backup)
		r.Post("/restore", backups.Restore)
	})
}

func loanDefaults(cfg config.LoanConfig, logger *slog.Logger) dto.LoanDefaults {
	return dto.LoanDefaults{
		InterestRate: parseRate("loan.defaultInterestRate", cfg.DefaultInterestRate, logger),
		PenaltyRate:  parseRate("loan.defaultPenaltyRate", cfg.DefaultPenaltyRate, logger),
	}
}

func parseRate(key, s string, logger *slog.Logger) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		logger.Warn("Invalid rate in configuration, using 0", "key", key, "value", s)
		return decimal.Zero
	}
	return d
}
