// @title           FasoDevis API
// @version         1.0
// @description     API for artisan quotes and invoices in FCFA: dictated line items, server-side pricing, PDF export, offline sync, and freemium plans.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/catalog"
	"github.com/fasodevis/fasodevis-backend/internal/clients"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/internal/payments"
	"github.com/fasodevis/fasodevis-backend/internal/pdf"
	"github.com/fasodevis/fasodevis-backend/internal/profile"
	"github.com/fasodevis/fasodevis-backend/internal/quotes"
	"github.com/fasodevis/fasodevis-backend/internal/storage"
	appsync "github.com/fasodevis/fasodevis-backend/internal/sync"
	"github.com/fasodevis/fasodevis-backend/pkg/database"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.CatalogItem{},
		&models.Quote{}, &models.QuoteItem{}, &models.QuoteCounter{},
		&models.QuoteHistory{}, &models.Payment{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth
	authH := auth.NewHandler(db)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	// Shared services
	sb := storage.NewSupabase() // uses SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET
	checker := limits.NewChecker(db)
	renderer := pdf.NewRenderer()

	// Profile
	profH := profile.NewHandler(db, sb)
	api.Get("/profile", auth.RequireAuth(), profH.Get)
	api.Put("/profile", auth.RequireAuth(), profH.Update)
	api.Post("/profile/logo", auth.RequireAuth(), profH.UploadLogo)
	api.Post("/profile/signature", auth.RequireAuth(), profH.UploadSignature)

	// Clients
	clientH := clients.NewHandler(db, checker)
	api.Post("/clients", auth.RequireAuth(), clientH.Create)
	api.Get("/clients", auth.RequireAuth(), clientH.List)
	api.Get("/clients/:id", auth.RequireAuth(), clientH.Get)
	api.Put("/clients/:id", auth.RequireAuth(), clientH.Update)
	api.Delete("/clients/:id", auth.RequireAuth(), clientH.Delete)

	// Catalog
	catH := catalog.NewHandler(db, checker)
	api.Post("/catalog", auth.RequireAuth(), catH.Create)
	api.Get("/catalog", auth.RequireAuth(), catH.List)
	api.Get("/catalog/:id", auth.RequireAuth(), catH.Get)
	api.Put("/catalog/:id", auth.RequireAuth(), catH.Update)
	api.Delete("/catalog/:id", auth.RequireAuth(), catH.Delete)

	// Quotes
	quoteH := quotes.NewHandler(db, checker, renderer)
	api.Post("/quotes/parse", auth.RequireAuth(), quoteH.Parse)
	api.Post("/quotes", auth.RequireAuth(), quoteH.Create)
	api.Get("/quotes", auth.RequireAuth(), quoteH.List)
	api.Get("/quotes/:id", auth.RequireAuth(), quoteH.Get)
	api.Put("/quotes/:id", auth.RequireAuth(), quoteH.Update)
	api.Delete("/quotes/:id", auth.RequireAuth(), quoteH.Delete)
	api.Post("/quotes/:id/status", auth.RequireAuth(), quoteH.ChangeStatus)
	api.Get("/quotes/:id/pdf", auth.RequireAuth(), quoteH.ExportPDF)

	// Plan usage
	limitH := limits.NewHandler(db, checker)
	api.Get("/limits", auth.RequireAuth(), limitH.Overview)

	// Offline replay
	syncH := appsync.NewHandler(db, checker)
	api.Post("/sync", auth.RequireAuth(), syncH.Apply)

	// Payments
	payH := payments.NewHandler(db, payments.FromEnv())
	api.Post("/checkout/quotes/:quoteID", auth.RequireAuth(), payH.CreateQuoteCheckout)
	api.Post("/checkout/subscription", auth.RequireAuth(), payH.CreateSubscriptionCheckout)
	api.Get("/payments", auth.RequireAuth(), payH.List)

	// Webhooks (server-only, no auth)
	api.Post("/payments/webhook/stripe", payH.StripeWebhook)
	api.Post("/payments/webhook/cinetpay", payH.CinetPayNotify)

	// Only in dev mode with mock payment provider
	if os.Getenv("APP_ENV") == "dev" && os.Getenv("PAYMENT_PROVIDER") != "stripe" && os.Getenv("PAYMENT_PROVIDER") != "cinetpay" {
		api.Post("/payments/mock/complete", payH.MockComplete) // Protected by X-Dev-Secret
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Println("Server running on :" + port)
	log.Fatal(app.Listen(":" + port))
}
