package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/matching"
)

// ImportStats tracks per-collection progress of a legacy import.
type ImportStats struct {
	StartTime time.Time
	Users     int
	Items     int
	Pairs     int
	Skipped   int
}

// legacyUser mirrors the document shape of the old platform's users
// collection.
type legacyUser struct {
	ID        string   `bson:"_id"`
	Telegram  string   `bson:"telegram_id"`
	Username  string   `bson:"username"`
	Locations []string `bson:"locations"`
}

type legacyListing struct {
	ID          string `bson:"_id"`
	UserID      string `bson:"user_id"`
	Kind        string `bson:"kind"`
	Category    string `bson:"category"`
	Description string `bson:"description"`
	Value       int64  `bson:"value"`
	Days        int    `bson:"duration_days"`
	Active      bool   `bson:"active"`
}

// legacyTrade is a completed or declined pairing from the old platform; it
// seeds the training corpus before any native feedback exists.
type legacyTrade struct {
	ID        string `bson:"_id"`
	DescA     string `bson:"description_a"`
	DescB     string `bson:"description_b"`
	CategoryA string `bson:"category_a"`
	CategoryB string `bson:"category_b"`
	Outcome   string `bson:"outcome"`
}

// Importer copies users, listings and trade history from the legacy MongoDB
// deployment into Postgres. It is a one-shot tool: reruns are safe because
// every insert ignores conflicts on the natural key.
type Importer struct {
	pgDB      *bun.DB
	mongoURI  string
	database  string
	batchSize int
	sim       matching.LanguageSimilarity
	collNames map[string]string
	stats     ImportStats
}

func NewImporter(pgDB *bun.DB, mongoURI, database string, sim matching.LanguageSimilarity) *Importer {
	return &Importer{
		pgDB:      pgDB,
		mongoURI:  mongoURI,
		database:  database,
		batchSize: 500,
		sim:       sim,
		collNames: map[string]string{
			"users":    "users",
			"listings": "listings",
			"trades":   "trades",
		},
	}
}

// Run executes the full import: users, then listings, then the trade history
// converted to training pairs.
func (im *Importer) Run(ctx context.Context) (*ImportStats, error) {
	im.stats = ImportStats{StartTime: time.Now()}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(im.mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to legacy mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			slog.Warn("Failed to disconnect from legacy mongo",
				slog.String("type", "db"),
				slog.Any("error", err))
		}
	}()

	db := client.Database(im.database)
	if err := im.importUsers(ctx, db); err != nil {
		return &im.stats, err
	}
	if err := im.importListings(ctx, db); err != nil {
		return &im.stats, err
	}
	if err := im.importTrades(ctx, db); err != nil {
		return &im.stats, err
	}

	slog.Info("Legacy import completed",
		slog.String("type", "db"),
		slog.Int("users", im.stats.Users),
		slog.Int("items", im.stats.Items),
		slog.Int("training_pairs", im.stats.Pairs),
		slog.Int("skipped", im.stats.Skipped),
		slog.Duration("took", time.Since(im.stats.StartTime)))
	return &im.stats, nil
}

func (im *Importer) importUsers(ctx context.Context, db *mongo.Database) error {
	cursor, err := db.Collection(im.collNames["users"]).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.User
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := im.pgDB.NewInsert().
			Model(&batch).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert users batch: %w", err)
		}
		im.stats.Users += len(batch)
		batch = batch[:0]
		return nil
	}

	for cursor.Next(ctx) {
		var legacy legacyUser
		if err := cursor.Decode(&legacy); err != nil {
			im.stats.Skipped++
			continue
		}
		if legacy.ID == "" {
			im.stats.Skipped++
			continue
		}
		batch = append(batch, &models.User{
			UserID:     legacy.ID,
			TelegramID: legacy.Telegram,
			Username:   legacy.Username,
			Locations:  legacy.Locations,
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("legacy users cursor failed: %w", err)
	}
	return flush()
}

func (im *Importer) importListings(ctx context.Context, db *mongo.Database) error {
	cursor, err := db.Collection(im.collNames["listings"]).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query legacy listings: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.Item
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := im.pgDB.NewInsert().
			Model(&batch).
			On("CONFLICT (item_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert items batch: %w", err)
		}
		im.stats.Items += len(batch)
		batch = batch[:0]
		return nil
	}

	for cursor.Next(ctx) {
		var legacy legacyListing
		if err := cursor.Decode(&legacy); err != nil {
			im.stats.Skipped++
			continue
		}

		kind := models.ItemKind(strings.ToLower(legacy.Kind))
		if kind != models.ItemKindOffer && kind != models.ItemKindWant {
			im.stats.Skipped++
			continue
		}
		if strings.TrimSpace(legacy.Description) == "" {
			im.stats.Skipped++
			continue
		}

		batch = append(batch, &models.Item{
			ItemID:       legacy.ID,
			OwnerID:      legacy.UserID,
			Kind:         kind,
			Category:     strings.ToLower(legacy.Category),
			Description:  legacy.Description,
			Value:        legacy.Value,
			DurationDays: legacy.Days,
			Active:       legacy.Active,
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("legacy listings cursor failed: %w", err)
	}
	return flush()
}

// importTrades converts the legacy trade history into training pairs.
// Features are re-extracted from the stored descriptions because the old
// platform never kept feature vectors.
func (im *Importer) importTrades(ctx context.Context, db *mongo.Database) error {
	cursor, err := db.Collection(im.collNames["trades"]).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query legacy trades: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.TrainingPair
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := im.pgDB.NewInsert().
			Model(&batch).
			On("CONFLICT (pair_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert training batch: %w", err)
		}
		im.stats.Pairs += len(batch)
		batch = batch[:0]
		return nil
	}

	for cursor.Next(ctx) {
		var legacy legacyTrade
		if err := cursor.Decode(&legacy); err != nil {
			im.stats.Skipped++
			continue
		}

		var label bool
		switch strings.ToLower(legacy.Outcome) {
		case "completed", "confirmed":
			label = true
		case "declined", "rejected":
			label = false
		default:
			im.stats.Skipped++
			continue
		}

		langSim := im.sim.Similarity(
			matching.NormalizeText(legacy.DescA),
			matching.NormalizeText(legacy.DescB))
		features := matching.ExtractFeatures(
			legacy.DescA, legacy.DescB,
			legacy.CategoryA, legacy.CategoryB,
			langSim)

		batch = append(batch, &models.TrainingPair{
			PairID:    "legacy:" + legacy.ID,
			Features:  features,
			Label:     label,
			Source:    "legacy",
			CreatedAt: time.Now(),
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("legacy trades cursor failed: %w", err)
	}
	return flush()
}
