package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"pizzachallenge/internal/config"
	"pizzachallenge/internal/models"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"

	"go.uber.org/zap"
)

var demoNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi",
	"Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Rupert", "Sybil",
}

func main() {
	demoUsers := flag.Int("demo-users", 0, "number of demo players to create with random purchases")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
	defer func() { _ = zap.L().Sync() }()

	zap.L().Info("Starting seeder for the pizza challenge")

	db, err := repository.OpenPostgres(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	postgresRepo := repository.NewPostgresRepository(db)
	defer func() { _ = postgresRepo.Close() }()

	if err := postgresRepo.AutoMigrate(); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	// Running front ends learn about the seeded rows through Redis. A seeder
	// without Redis still writes the rows.
	var publisher service.Publisher
	redisClient, err := repository.OpenRedis(cfg)
	if err != nil {
		zap.L().Warn("Redis unavailable, change notifications disabled", zap.Error(err))
	} else {
		redisRepo := repository.NewRedisRepository(redisClient)
		defer func() { _ = redisRepo.Close() }()
		publisher = redisRepo
	}

	svc := service.NewPizzaService(postgresRepo, publisher, service.Options{
		StartingCoins:          cfg.App.StartingCoins,
		LeaderboardExcludeZero: cfg.App.LeaderboardExcludeZero,
	})

	ctx := context.Background()
	catalog := service.DefaultCatalog()
	if err := svc.SeedCatalog(ctx, catalog); err != nil {
		zap.L().Fatal("Failed to seed catalog", zap.Error(err))
	}
	zap.L().Info("Catalog seeded", zap.Int("slices", len(catalog)))

	if *demoUsers > 0 {
		if err := seedDemoUsers(ctx, svc, *demoUsers); err != nil {
			zap.L().Fatal("Failed to seed demo players", zap.Error(err))
		}
	}

	entries, err := svc.Leaderboard(ctx, true)
	if err != nil {
		zap.L().Fatal("Failed to read leaderboard", zap.Error(err))
	}
	for _, entry := range entries {
		if entry.Rank > 10 {
			break
		}
		zap.L().Info("Leaderboard",
			zap.Int("rank", entry.Rank),
			zap.String("name", entry.Name),
			zap.Int("eaten", entry.NumberOfPizzaEaten),
		)
	}

	zap.L().Info("Seeder finished")
}

// seedDemoUsers creates players, spends part of their coins and eats some of
// what they bought
func seedDemoUsers(ctx context.Context, svc *service.PizzaService, count int) error {
	slices, err := svc.ListSlices(ctx)
	if err != nil {
		return err
	}
	if len(slices) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	startTime := time.Now()
	eaten := 0

	for i := 0; i < count; i++ {
		name := demoNames[i%len(demoNames)]
		if i >= len(demoNames) {
			name = fmt.Sprintf("%s %d", name, i/len(demoNames)+1)
		}
		gender := models.GenderFemale
		if rng.Intn(2) == 0 {
			gender = models.GenderMale
		}

		user, err := svc.CreateUser(ctx, models.CreateUserRequest{
			Name:   name,
			Age:    18 + rng.Intn(40),
			Gender: gender,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}

		slice := slices[rng.Intn(len(slices))]
		quantity := 1 + rng.Intn(3)
		if slice.Price > 0 && slice.Price*quantity > user.Coins {
			quantity = user.Coins / slice.Price
		}
		if quantity == 0 {
			continue
		}

		result, err := svc.Purchase(ctx, models.PurchaseRequest{
			UserID: user.ID,
			Items:  []models.PurchaseItem{{SliceID: slice.ID, Quantity: quantity}},
		})
		if err != nil {
			return fmt.Errorf("purchase for %s: %w", name, err)
		}

		for _, record := range result.Records[:rng.Intn(len(result.Records)+1)] {
			if _, err := svc.MarkEaten(ctx, models.MarkEatenRequest{ID: record.ID, UserID: user.ID}); err != nil {
				return fmt.Errorf("mark eaten for %s: %w", name, err)
			}
			eaten++
		}
	}

	zap.L().Info("Demo players seeded",
		zap.Int("players", count),
		zap.Int("eaten", eaten),
		zap.Duration("took", time.Since(startTime)),
	)
	return nil
}
