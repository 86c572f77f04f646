package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/db"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
)

const defaultOwner = "seed-owner"

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	owner := strings.TrimSpace(os.Getenv("SEED_OWNER_UID"))
	if owner == "" {
		owner = defaultOwner
	}

	repo := repository.NewItemRepository(gdb)
	created, skipped := 0, 0
	for idx, it := range buildSeedItems(owner) {
		existing, err := repo.FindByTitle(ctx, it.Title)
		if err != nil {
			return fmt.Errorf("lookup %q: %w", it.Title, err)
		}
		if existing != nil {
			skipped++
			continue
		}
		img := picsumURL(it.Category, idx+1)
		it.ImageURL = &img
		if err := repo.Create(ctx, &it); err != nil {
			return fmt.Errorf("insert %q: %w", it.Title, err)
		}
		created++
	}

	log.Printf("seeded %d items (%d already present)", created, skipped)
	return nil
}

func buildSeedItems(owner string) []model.Item {
	type cat struct {
		Slug   string
		Price  float64
		Titles []string
	}
	categories := []cat{
		{Slug: "camera-photo", Price: 450, Titles: []string{"Mirrorless Camera Kit", "50mm Prime Lens", "Carbon Travel Tripod"}},
		{Slug: "outdoor-travel", Price: 300, Titles: []string{"4-Person Dome Tent", "Camping Stove Set", "Hiking Backpack 40L", "Folding Camp Chair"}},
		{Slug: "tools", Price: 200, Titles: []string{"Cordless Drill", "Pressure Washer", "Extension Ladder 6m"}},
		{Slug: "party-events", Price: 500, Titles: []string{"Bluetooth PA Speaker", "LED Party Lights", "Folding Banquet Table"}},
		{Slug: "sports", Price: 250, Titles: []string{"Mountain Bike", "Stand-up Paddle Board", "Badminton Set"}},
		{Slug: "electronics", Price: 350, Titles: []string{"Portable Projector", "Gaming Console", "Power Bank 20000mAh"}},
		{Slug: "baby-kids", Price: 150, Titles: []string{"Travel Stroller", "Convertible Car Seat"}},
	}

	locations := []string{"Shibuya, Tokyo", "Umeda, Osaka", "Tenjin, Fukuoka"}
	var items []model.Item
	for _, c := range categories {
		for i, t := range c.Titles {
			items = append(items, model.Item{
				OwnerUID:        owner,
				Title:           t,
				Description:     fmt.Sprintf("%s available for daily rental. Pick up or delivery can be arranged in chat.", t),
				Category:        c.Slug,
				PricePerDay:     c.Price + float64(i*50),
				DepositFee:      c.Price * 4,
				Location:        locations[len(items)%len(locations)],
				PaymentInterval: model.PaymentIntervalDay,
				Quantity:        1 + i%2,
				Available:       true,
			})
		}
	}
	return items
}

func picsumURL(slug string, itemIndex int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", slug, itemIndex)
}
