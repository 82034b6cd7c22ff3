package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/justone-api/internal/application/campus"
	"github.com/justone-api/internal/application/career"
	fileapp "github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/application/otp"
	"github.com/justone-api/internal/application/response"
	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/application/waitlist"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/transport/http/handler"
	appmiddleware "github.com/justone-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
// ctx bounds background work started by middleware.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey", appmiddleware.AdminKeyHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, applied to unauthenticated write endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	campusSvc := campus.NewService(campus.ServiceDeps{CampusRepo: deps.CampusRepo, Config: deps.CampusConfig})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		ProfileRepo:     deps.ProfileRepo,
		SessionRepo:     deps.SessionRepo,
		ResponseRepo:    deps.ResponseRepo,
		Campuses:        campusSvc,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.RefreshTokenExpiry(),
	})
	waitlistSvc := waitlist.NewService(waitlist.ServiceDeps{
		WaitlistRepo: deps.WaitlistRepo,
		RateLimiter:  deps.RateLimiter,
		Mailer:       deps.Mailer,
		From:         cfg.MailFrom,
		FromName:     cfg.MailFromName,
		Settings:     cfg.OTP,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		CodeRepo:    deps.OTPCodeRepo,
		RateLimiter: deps.RateLimiter,
		Campuses:    campusSvc,
		Accounts:    sessionSvc,
		Waitlist:    waitlistSvc,
		Mailer:      deps.Mailer,
		From:        cfg.MailFrom,
		FromName:    cfg.MailFromName,
		Settings:    cfg.OTP,
	})
	fileSvc := fileapp.NewService(deps.ObjectStore, deps.Cipher)
	responseSvc := response.NewService(response.ServiceDeps{
		ResponseRepo: deps.ResponseRepo,
		ProfileRepo:  deps.ProfileRepo,
		Cipher:       deps.Cipher,
		Photos:       fileSvc,
	})
	careerSvc := career.NewService(career.ServiceDeps{
		ApplicationRepo: deps.CareerRepo,
		Files:           fileSvc,
		Mailer:          deps.Mailer,
		Publisher:       deps.Publisher,
		From:            cfg.CareersFrom,
		FromName:        cfg.MailFromName + " Careers",
		Inbox:           cfg.CareersInbox,
	})

	authMw := appmiddleware.Auth(deps.JWTProvider, sessionSvc)

	healthH := handler.NewHealthHandler()
	campusH := handler.NewCampusHandler(campusSvc)
	otpH := handler.NewOTPHandler(otpSvc)
	waitlistH := handler.NewWaitlistHandler(waitlistSvc)
	careerH := handler.NewCareerHandler(careerSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	responseH := handler.NewResponseHandler(responseSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Get("/campuses", campusH.List)
		r.Post("/sessions/refresh", sessionH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/send-otp", otpH.Send)
			r.Post("/verify-otp", otpH.Verify)
			r.Post("/send-waitlist-otp", otpH.SendWaitlist)
			r.Post("/verify-waitlist-otp", otpH.VerifyWaitlist)
			r.Post("/send-waitlist-email", waitlistH.Join)
			r.Post("/send-career-application", careerH.Apply)
		})

		r.With(appmiddleware.AdminKey(cfg.AdminAPIKey)).Get("/admin-get-responses", responseH.AdminList)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/me", sessionH.Me)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/sessions/logout-all", sessionH.LogoutAll)
			r.Post("/submit-responses", responseH.Submit)

			r.With(appmiddleware.RequireRole(domain.RoleAdmin)).Get("/admin/responses", responseH.AdminList)
		})
	})

	return r
}
