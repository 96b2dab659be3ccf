package router

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/config"
	"github.com/sahilchouksey/course-storefront/database"
	"github.com/sahilchouksey/course-storefront/handlers"
	admin_handlers "github.com/sahilchouksey/course-storefront/handlers/admin"
	auth_handlers "github.com/sahilchouksey/course-storefront/handlers/auth"
	checkout_handlers "github.com/sahilchouksey/course-storefront/handlers/checkout"
	course_handlers "github.com/sahilchouksey/course-storefront/handlers/course"
	download_handlers "github.com/sahilchouksey/course-storefront/handlers/download"
	maintenance_handlers "github.com/sahilchouksey/course-storefront/handlers/maintenance"
	payment_handlers "github.com/sahilchouksey/course-storefront/handlers/payment"
	purchase_handlers "github.com/sahilchouksey/course-storefront/handlers/purchase"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/services/cron"
	"github.com/sahilchouksey/course-storefront/services/events"
	"github.com/sahilchouksey/course-storefront/services/mailer"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/cache"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
)

// Services bundles everything the routes and the scheduler share.
type Services struct {
	Accounts  *services.AccountService
	Tokens    *services.TokenService
	Courses   *services.CourseService
	Reviews   *services.ReviewService
	Purchases *services.PurchaseService
	Checkout  *services.CheckoutService
	Webhooks  *services.WebhookService
	Verifier  *services.SessionVerifier
	Downloads *services.DownloadService
	Cleanup   *services.CleanupService

	JWT        *auth.JWTManager
	RedisCache *cache.RedisCache
}

// BuildServices wires the external adapters and domain services from config.
func BuildServices(store database.Storage, env *config.EnviornmentVariable) (*Services, error) {
	if env.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	db := store.DB()

	objectStore, err := storage.NewS3Store(storage.S3Config{
		AccessKey: env.AWS_ACCESS_KEY_ID,
		SecretKey: env.AWS_SECRET_ACCESS_KEY,
		Bucket:    env.AWS_S3_BUCKET_NAME,
		Region:    env.AWS_REGION,
		Endpoint:  env.AWS_S3_ENDPOINT,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	gateway := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     env.STRIPE_SECRET_KEY,
		WebhookSecret: env.STRIPE_WEBHOOK_SECRET,
	})
	if env.STRIPE_WEBHOOK_SECRET == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET is not set. Webhooks will be rejected unless ALLOW_UNVERIFIED_WEBHOOKS=true.")
	}

	smtp := mailer.NewSMTPMailer(mailer.Config{
		Host:      env.SMTP_HOST,
		Port:      env.SMTP_PORT,
		Username:  env.SMTP_USERNAME,
		Password:  env.SMTP_PASSWORD,
		FromEmail: env.SMTP_FROM_EMAIL,
		FromName:  env.SMTP_FROM_NAME,
	})
	if !smtp.IsConfigured() {
		log.Println("Warning: SMTP is not configured. Purchase and verification emails will not be sent.")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if env.RABBITMQ_URL != "" {
		publisher = events.NewRabbitPublisher(env.RABBITMQ_URL)
	}

	// Redis is optional. Without it the catalog is uncached and brute force protection is off.
	var (
		redisCache   *cache.RedisCache
		catalogCache services.CatalogCache
	)
	if env.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Caching and brute force protection will be disabled.", err)
			redisCache = nil
		} else {
			catalogCache = redisCache
		}
	}

	tokens := services.NewTokenService(db)
	accounts := services.NewAccountService(db, tokens, smtp, env.APP_URL)

	return &Services{
		Accounts:  accounts,
		Tokens:    tokens,
		Courses:   services.NewCourseService(db, objectStore, catalogCache),
		Reviews:   services.NewReviewService(db),
		Purchases: services.NewPurchaseService(db),
		Checkout:  services.NewCheckoutService(db, gateway, env.APP_URL, env.CURRENCY),
		Webhooks: services.NewWebhookService(db, gateway, accounts, tokens, objectStore, smtp, publisher, services.WebhookConfig{
			AllowUnverified: env.ALLOW_UNVERIFIED_WEBHOOKS,
			PurchaseLinkTTL: time.Duration(env.PURCHASE_EMAIL_LINK_EXPIRY_HOURS) * time.Hour,
			AppURL:          env.APP_URL,
		}),
		Verifier:  services.NewSessionVerifier(db, gateway, tokens),
		Downloads: services.NewDownloadService(db, objectStore, time.Duration(env.DOWNLOAD_LINK_EXPIRY_HOURS)*time.Hour),
		Cleanup:   services.NewCleanupService(db, tokens),

		JWT: auth.NewJWTManager(auth.JWTConfig{
			Secret: env.JWT_SECRET,
			Issuer: env.JWT_ISSUER,
		}),
		RedisCache: redisCache,
	}, nil
}

func SetupRoutes(app *fiber.App, store database.Storage, svc *Services, env *config.EnviornmentVariable) {
	db := store.DB()

	var bruteForceProtection *middleware.BruteForceProtection
	if svc.RedisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(svc.RedisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(svc.JWT, db)

	authHandler := auth_handlers.NewAuthHandler(db, svc.Accounts, svc.JWT, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(svc.Courses, svc.Reviews)
	adminHandler := admin_handlers.NewAdminHandler(db, svc.Courses)
	checkoutHandler := checkout_handlers.NewCheckoutHandler(svc.Checkout)
	paymentHandler := payment_handlers.NewPaymentHandler(svc.Webhooks, svc.Verifier)
	downloadHandler := download_handlers.NewDownloadHandler(svc.Downloads)
	purchaseHandler := purchase_handlers.NewPurchaseHandler(svc.Purchases)
	maintenanceHandler := maintenance_handlers.NewMaintenanceHandler(cron.NewJobRunner(db), svc.Cleanup)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	api := app.Group("/api/v1")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", bruteForceProtection.Guard(), authHandler.Login)
	authGroup.Post("/auto-login", bruteForceProtection.Guard(), authHandler.AutoLogin)
	authGroup.Post("/verify-email", authHandler.VerifyEmail)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.GetProfile)

	// Catalog
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Get("/:id/reviews", courseHandler.ListReviews)
	courses.Post("/:id/reviews", authMiddleware.Required(), courseHandler.CreateReview)
	courses.Delete("/:id/reviews", authMiddleware.Required(), courseHandler.DeleteReview)

	// Checkout and fulfillment
	api.Post("/checkout", authMiddleware.Optional(), checkoutHandler.CreateSession)

	paymentsGroup := api.Group("/payments")
	paymentsGroup.Post("/webhook", paymentHandler.Webhook)
	paymentsGroup.Post("/verify-session", paymentHandler.VerifySession)

	downloads := api.Group("/downloads", authMiddleware.Required())
	downloads.Get("/", downloadHandler.History)
	downloads.Get("/generate/:courseId", downloadHandler.Generate)

	api.Get("/purchases", authMiddleware.Required(), purchaseHandler.ListMine)

	// Admin
	admin := api.Group("/admin", authMiddleware.Required(), authMiddleware.RequireAdmin())
	admin.Get("/courses", adminHandler.ListCourses)
	admin.Post("/courses", middleware.AdminAuditLog(db, "course_create", "courses"), adminHandler.CreateCourse)
	admin.Get("/courses/:id", adminHandler.GetCourse)
	admin.Put("/courses/:id", middleware.AdminAuditLog(db, "course_update", "courses"), adminHandler.UpdateCourse)
	admin.Delete("/courses/:id", middleware.AdminAuditLog(db, "course_delete", "courses"), adminHandler.DeleteCourse)
	admin.Post("/upload/presigned-url", adminHandler.PresignUpload)
	admin.Get("/audit-logs", adminHandler.ListAuditLogs)

	// Maintenance
	api.Post("/cron/cleanup", middleware.RequireCronSecret(env.CRON_SECRET), maintenanceHandler.Cleanup)
}
