package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/directory"
	"github.com/scade330/clinic2-portal/internal/forms"
	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/session"
	"github.com/scade330/clinic2-portal/internal/transfer"
)

type RouterConfig struct {
	Forms         *forms.Manager
	Directory     *directory.View
	Records       RecordsAPI
	Prescriptions PrescriptionsAPI
	Transfer      *transfer.Service
	Recipients    transfer.RecipientStore
	Sessions      *session.Client
	Metrics       *metrics.Metrics
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        *zap.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Sessions, cfg.Logger))

		// Intake form sessions
		r.Route("/forms", func(r chi.Router) {
			r.Post("/", openFormHandler(cfg.Forms, cfg.Metrics))
			r.Route("/{formID}", func(r chi.Router) {
				r.Get("/", getFormHandler(cfg.Forms))
				r.Patch("/", setFieldHandler(cfg.Forms))
				r.Delete("/", discardFormHandler(cfg.Forms, cfg.Metrics))
				r.Post("/submit", submitFormHandler(cfg.Forms, cfg.Metrics))

				r.Post("/treatments", entryOpHandler(cfg.Forms, pickTreatments, "add"))
				r.Patch("/treatments/{index}", entryOpHandler(cfg.Forms, pickTreatments, "update"))
				r.Delete("/treatments/{index}", entryOpHandler(cfg.Forms, pickTreatments, "remove"))

				r.Post("/vaccinations", entryOpHandler(cfg.Forms, pickVaccinations, "add"))
				r.Patch("/vaccinations/{index}", entryOpHandler(cfg.Forms, pickVaccinations, "update"))
				r.Delete("/vaccinations/{index}", entryOpHandler(cfg.Forms, pickVaccinations, "remove"))
			})
		})

		// Patient directory
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Directory))
			r.Post("/reload", reloadPatientsHandler(cfg.Directory))
			r.Get("/export/csv", exportCSVHandler(cfg.Directory))
			r.Get("/document", listDocumentHandler(cfg.Directory))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getPatientHandler(cfg.Directory, cfg.Records))
				r.Delete("/", deletePatientHandler(cfg.Directory))
				r.Post("/expand", expandPatientHandler(cfg.Directory))
				r.Get("/document", patientDocumentHandler(cfg.Directory, cfg.Records))

				r.Post("/lab-results", uploadLabResultHandler(cfg.Records))
				r.Delete("/lab-results/{imageID}", deleteLabResultHandler(cfg.Records))

				r.Post("/treatments", addTreatmentHandler(cfg.Records))
				r.Delete("/treatments/{index}", deleteTreatmentHandler(cfg.Records))
				r.Post("/vaccinations", addVaccinationHandler(cfg.Records))
				r.Delete("/vaccinations/{index}", deleteVaccinationHandler(cfg.Records))

				r.Get("/prescriptions", patientPrescriptionsHandler(cfg.Prescriptions))
				r.Get("/referrals", patientReferralsHandler(cfg.Transfer))
			})
		})

		// Prescriptions and pharmacy sales, relayed to the upstream service
		r.Route("/prescriptions", func(r chi.Router) {
			r.Get("/", listPrescriptionsHandler(cfg.Prescriptions))
			r.Post("/", createPrescriptionHandler(cfg.Prescriptions))
			r.Get("/{id}", getPrescriptionHandler(cfg.Prescriptions))
			r.Put("/{id}", updatePrescriptionHandler(cfg.Prescriptions))
			r.Delete("/{id}", deletePrescriptionHandler(cfg.Prescriptions))
		})
		r.Get("/pharmacy-items", listPharmacyItemsHandler(cfg.Prescriptions))
		r.Post("/sales", recordSaleHandler(cfg.Prescriptions))

		// Referrals
		r.Route("/referrals", func(r chi.Router) {
			r.Post("/", processReferralHandler(cfg.Transfer, cfg.Metrics))
			r.Get("/", listReferralsHandler(cfg.Transfer))
			r.Get("/recipients", listRecipientsHandler(cfg.Recipients))
			r.Post("/recipients", addRecipientHandler(cfg.Recipients))
		})

		// Session
		r.Get("/me", meHandler(cfg.Sessions))
		r.Post("/logout", logoutHandler(cfg.Sessions))
	})

	return r
}
