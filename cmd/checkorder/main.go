// Command checkorder is a support tool. Given a checkout session id it asks
// the payment processor for the session, polls for the purchase the webhook
// should have written, and prints the recent webhook deliveries.
//
//	go run ./cmd/checkorder cs_test_123
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sahilchouksey/course-storefront/config"
	"github.com/sahilchouksey/course-storefront/database"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/services/payments"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: checkorder <checkout-session-id>")
		os.Exit(1)
	}
	sessionID := os.Args[1]

	if err := config.LoadENV(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	env, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	db := store.DB()

	gateway := payments.NewStripeGateway(payments.StripeConfig{SecretKey: env.STRIPE_SECRET_KEY})
	verifier := services.NewSessionVerifier(db, gateway, services.NewTokenService(db))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := services.PollVerify(ctx, verifier, sessionID, services.VerifyMaxAttempts, services.VerifyRetryDelay)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if result.Pending {
		fmt.Println("\nPurchase not recorded yet. Recent webhook deliveries:")
	} else {
		fmt.Println("\nRecent webhook deliveries:")
	}

	var events []model.WebhookEvent
	if err := db.Order("created_at DESC").Limit(10).Find(&events).Error; err != nil {
		log.Fatalf("Failed to list webhook events: %v", err)
	}
	for _, e := range events {
		status := "processed"
		switch {
		case e.ProcessingError != "":
			status = "error: " + e.ProcessingError
		case !e.IsProcessed():
			status = "pending"
		}
		fmt.Printf("  %s  %-28s %-26s verified=%v  %s\n",
			e.CreatedAt.Format(time.RFC3339), e.EventID, e.EventType, e.SignatureValid, status)
	}
}
