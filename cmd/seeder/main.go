//cmd/seeder/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bramblehq/mailvine-backend/internal/config"
	"github.com/bramblehq/mailvine-backend/internal/crypto"
	"github.com/bramblehq/mailvine-backend/internal/db"
	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"

	"go.uber.org/zap"
)

// Seeds the schema plus a handful of demo subscribers and campaigns.
// Subscribers go through the repository so their contact fields are stored
// encrypted under the configured key, the same as production writes.
func main() {
	cfg := config.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.EncryptionKey == "" {
		log.Fatal("ENCRYPTION_KEY must be set to seed encrypted subscriber data")
	}
	cipher, err := crypto.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("invalid encryption key: %v", err)
	}

	database, err := db.Open(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	schema, err := os.ReadFile("migrations/schema.sql")
	if err != nil {
		log.Fatalf("failed to read schema: %v", err)
	}
	if _, err := database.Exec(string(schema)); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	fmt.Println("Applied: migrations/schema.sql")

	subscriberRepo := &repository.SubscriberRepository{DB: database, Cipher: cipher, Log: logger}
	campaignRepo := &repository.CampaignRepository{DB: database}

	type seedSubscriber struct {
		email string
		phone string
		name  string
		sms   bool
	}
	subscribers := []seedSubscriber{
		{email: "alice@example.com", phone: "+15550100001", name: "Alice Nyambura", sms: true},
		{email: "bob@example.com", name: "Bob Otieno"},
		{email: "carol@example.com", phone: "+15550100003", name: "Carol Wanjiru", sms: true},
	}

	for _, seed := range subscribers {
		existing, err := subscriberRepo.FindByEmail(seed.email)
		if err != nil {
			log.Fatalf("failed to look up %s: %v", seed.email, err)
		}
		if existing != nil {
			continue
		}
		s := &model.Subscriber{DisplayName: seed.name, EmailSubscribed: true}
		if err := subscriberRepo.SetEmail(s, seed.email); err != nil {
			log.Fatalf("failed to encrypt email for %s: %v", seed.name, err)
		}
		if seed.phone != "" {
			if err := subscriberRepo.SetPhone(s, seed.phone); err != nil {
				log.Fatalf("failed to encrypt phone for %s: %v", seed.name, err)
			}
			s.SMSSubscribed = seed.sms
		}
		s.AddSegmentTag("seed")
		if err := subscriberRepo.Create(s); err != nil {
			log.Fatalf("failed to create subscriber %s: %v", seed.name, err)
		}
		fmt.Printf("Seeded subscriber: %s\n", seed.name)
	}

	campaigns := []*model.Campaign{
		{
			Name:        "Welcome Series",
			Subject:     "Welcome, {customer_name}!",
			Channel:     model.ChannelEmail,
			TemplateRef: "welcome.html",
			HTMLContent: `<h1>Hello {customer_name}</h1><p>Thanks for signing up.</p><p><a href="{unsubscribe_link}">Unsubscribe</a></p>`,
		},
		{
			Name:        "Flash Sale SMS",
			Channel:     model.ChannelSMS,
			HTMLContent: `Hi {customer_name}, our flash sale ends tonight! Shop now.`,
		},
	}
	for _, c := range campaigns {
		if err := campaignRepo.Create(c); err != nil {
			log.Fatalf("failed to create campaign %s: %v", c.Name, err)
		}
		fmt.Printf("Seeded campaign: %s\n", c.Name)
	}

	fmt.Println("Database seeding completed successfully!")
}
