package main

import (
	"log"
	"time"

	"c3exam-backend/categories"
	"c3exam-backend/conn"
	"c3exam-backend/email"
	"c3exam-backend/login"
	"c3exam-backend/marketing"
	"c3exam-backend/migrations"
	"c3exam-backend/mockexam"
	"c3exam-backend/profile"
	"c3exam-backend/progress"
	"c3exam-backend/questions"
	"c3exam-backend/referrals"
	"c3exam-backend/stats"
	"c3exam-backend/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[MAIN] no .env file loaded: %v", err)
	}

	db, err := conn.NewMySQL()
	if err != nil {
		log.Fatalf("[MAIN] database connection failed: %v", err)
	}

	migrations.Init(db)
	if err := migrations.Migrate(); err != nil {
		log.Fatalf("[MAIN] migrations failed: %v", err)
	}
	if err := migrations.SeedDefaultAdmin(); err != nil {
		log.Printf("[MAIN] seed admin failed: %v", err)
	}
	stats.Init(db)

	questionRepo := questions.NewRepository(db)
	progressRepo := progress.NewRepository(db)
	recorder := mockexam.NewRecorder(db)
	categoryRepo := categories.NewRepository(db)

	referralRepo := referrals.NewRepository(db)
	referralEngine := referrals.NewEngine(referralRepo, func(to string, days int) {
		if err := email.SendReferralReward(to, days); err != nil {
			log.Printf("[MAIN] referral reward mail to %s failed: %v", to, err)
		}
	})

	ledger := subscriptions.NewRepository(db)
	users := subscriptions.NewUserStore(db)
	stripeSvc := subscriptions.NewStripeFromEnv(ledger)
	reconciler := subscriptions.NewReconciler(ledger, users, referralEngine, func(to string, amountCents int64, currency string, expiresAt time.Time) {
		if err := email.SendPaymentReceipt(to, amountCents, currency, expiresAt); err != nil {
			log.Printf("[MAIN] payment receipt mail to %s failed: %v", to, err)
		}
	})

	r := gin.Default()

	login.RegisterRoutes(r)
	questions.NewHandler(questionRepo).RegisterRoutes(r)
	categories.NewHandler(categoryRepo).RegisterRoutes(r)
	progress.NewHandler(progressRepo, questionRepo).RegisterRoutes(r)
	mockexam.NewHandler(recorder, questionRepo).RegisterRoutes(r)
	referrals.NewHandler(referralEngine).RegisterRoutes(r)
	subscriptions.NewHandler(stripeSvc, reconciler, users, ledger).RegisterRoutes(r)
	profile.RegisterRoutes(r)
	stats.RegisterRoutes(r)
	stats.RegisterAdminRoutes(r)

	marketing.NewService(db).Start()

	if err := r.Run(":8080"); err != nil {
		log.Fatalf("[MAIN] server stopped: %v", err)
	}
}
