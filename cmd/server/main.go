// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/config"
	"github.com/bramblehq/mailvine-backend/internal/controller"
	"github.com/bramblehq/mailvine-backend/internal/crypto"
	"github.com/bramblehq/mailvine-backend/internal/db"
	"github.com/bramblehq/mailvine-backend/internal/handler"
	"github.com/bramblehq/mailvine-backend/internal/imaging"
	"github.com/bramblehq/mailvine-backend/internal/importer"
	"github.com/bramblehq/mailvine-backend/internal/repository"
	"github.com/bramblehq/mailvine-backend/internal/service"
	"github.com/bramblehq/mailvine-backend/internal/transport"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	masterKey := cfg.EncryptionKey
	if masterKey == "" {
		if cfg.IsProduction() {
			logger.Fatal("ENCRYPTION_KEY must be set in production")
		}
		masterKey, err = crypto.GenerateMasterKey()
		if err != nil {
			logger.Fatal("failed to generate ephemeral encryption key", zap.Error(err))
		}
		logger.Warn("ENCRYPTION_KEY not set; using an ephemeral key, encrypted data will be unreadable after restart")
	}

	cipher, err := crypto.NewFieldCipher(masterKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}
	tokens, err := crypto.NewConsentTokenizer(masterKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}

	database, err := db.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	subscriberRepo := &repository.SubscriberRepository{DB: database, Cipher: cipher, Log: logger}
	campaignRepo := &repository.CampaignRepository{DB: database}

	images := &imaging.Resolver{
		Mode:      imaging.Mode(cfg.ImageMode),
		StaticDir: cfg.StaticDir,
		BaseURL:   cfg.BaseURL,
		StaticURL: cfg.StaticURL,
		Log:       logger,
	}

	email := transport.NewMailjetTransport(cfg.MailjetPublicKey, cfg.MailjetPrivateKey, cfg.SenderEmail, cfg.SenderName)
	sms := transport.NewTwilioTransport(cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFromNumber, cfg.SMSAPIBaseURL)

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		Images:       images,
		Log:          logger,
	}

	pipeline := &service.SendPipeline{
		Subscribers:  subscriberRepo,
		Campaigns:    campaignRepo,
		Tokens:       tokens,
		Images:       images,
		Email:        email,
		SMS:          sms,
		BaseURL:      cfg.BaseURL,
		BusinessName: cfg.BusinessName,
		Log:          logger,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		SendPipeline:    pipeline,
		Log:             logger,
	}

	csvImporter := &importer.Importer{Subscribers: subscriberRepo, Log: logger}

	subscriberHandler := &handler.SubscriberHandler{
		Subscribers: subscriberRepo,
		Importer:    csvImporter,
		UploadDir:   cfg.UploadDir,
		Log:         logger,
	}
	consentHandler := &handler.ConsentHandler{
		Subscribers: subscriberRepo,
		Tokens:      tokens,
		Log:         logger,
	}

	r := chi.NewRouter()

	// Subscriber routes
	r.Get("/", subscriberHandler.Dashboard)
	r.Get("/contacts", subscriberHandler.ListSubscribers)
	r.Post("/signup", subscriberHandler.Signup)
	r.Post("/import", subscriberHandler.ImportContacts)

	// Consent routes
	r.Get("/unsubscribe", consentHandler.Unsubscribe)
	r.Get("/sms-optout", consentHandler.SMSOptOut)
	r.Post("/sms-optout", consentHandler.SMSWebhook)

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Put("/campaigns/{id}", campaignController.UpdateCampaign)
	r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)
	r.Get("/campaigns/{id}/preview", campaignController.PreviewCampaign)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)

	// Static assets referenced by externally hosted campaign images
	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
	r.Get("/static/*", fileServer.ServeHTTP)

	logger.Info("server running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
