// seed inserts demo plants for a local user and prints a token to query them.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/plantcare/config"
	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/infrastructure/postgres"
	"github.com/golang-jwt/jwt/v5"
)

const seedUserID = "seed-user"

type plantSpec struct {
	name         string
	species      string
	intervalDays int // -1 means no cadence
	hour, minute int
	wateredAgo   time.Duration // 0 means never watered
}

var plants = []plantSpec{
	// Daily reminders fire regardless of the last watering
	{"Basil", "Ocimum basilicum", 0, 7, 30, 12 * time.Hour},
	{"Mint", "Mentha spicata", 0, 19, 0, 0},

	// Interval reminders in the future
	{"Fern", "Nephrolepis exaltata", 3, 9, 0, 24 * time.Hour},
	{"Monstera", "Monstera deliciosa", 7, 10, 0, 48 * time.Hour},
	{"Pothos", "Epipremnum aureum", 10, 18, 15, 72 * time.Hour},

	// Past due: the next watering time has passed, no reminder is created
	{"Calathea", "Calathea orbifolia", 2, 8, 0, 5 * 24 * time.Hour},

	// Nothing to schedule
	{"Cactus", "", -1, 0, 0, 30 * 24 * time.Hour},
	{"Snake plant", "Dracaena trifasciata", 14, 9, 0, 0},
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v (run: direnv allow)", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Panicf("migrate: %v", err)
	}

	// Re-runs replace the seed user's plants.
	tag, err := pool.Exec(ctx, `DELETE FROM plants WHERE user_id = $1`, seedUserID)
	if err != nil {
		log.Panicf("clear seed plants: %v", err)
	}

	repo := postgres.NewPlantRepository(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Now().In(cfg.Location())

	for _, spec := range plants {
		p := &domain.Plant{UserID: seedUserID, Name: spec.name}
		if spec.species != "" {
			species := spec.species
			p.Species = &species
		}
		if spec.intervalDays >= 0 {
			tod, err := domain.NewTimeOfDay(spec.hour, spec.minute)
			if err != nil {
				log.Panicf("plant %s: %v", spec.name, err)
			}
			c, err := domain.NewCadence(spec.intervalDays, tod)
			if err != nil {
				log.Panicf("plant %s: %v", spec.name, err)
			}
			p.Cadence = &c
		}
		if spec.wateredAgo > 0 {
			at := now.Add(-spec.wateredAgo)
			p.LastWateredAt = &at
		}

		created, err := repo.Create(ctx, p)
		if err != nil {
			log.Panicf("insert plant %s: %v", spec.name, err)
		}
		fmt.Printf("  %-12s %s\n", created.Name, created.ID)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   seedUserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Panicf("sign token: %v", err)
	}

	fmt.Println()
	fmt.Printf("Seed complete: %d plants for %s (replaced %d)\n", len(plants), seedUserID, tag.RowsAffected())
	fmt.Println()
	fmt.Println("Plants are stored without reminders. Push them to the gateway with:")
	fmt.Println()
	fmt.Println("    go run ./cmd/resync")
	fmt.Println()
	fmt.Println("Then query them (token valid for 24h):")
	fmt.Println()
	fmt.Printf("    export JWT=%s\n", token)
	fmt.Println("    curl -s http://localhost:8080/plants -H \"Authorization: Bearer $JWT\"")
	fmt.Println("    curl -s http://localhost:8080/plants/PLANT_ID/reminder -H \"Authorization: Bearer $JWT\"")
	fmt.Println("    curl -s 'http://localhost:8080/plants/PLANT_ID/care-context?region=AU' -H \"Authorization: Bearer $JWT\"")
}
