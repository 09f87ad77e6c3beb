package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridehail/pkg/logger"
)

const migrationsCollection = "migrations"

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
}

// Migrator applies index migrations in version order and records the
// highest applied version in the migrations collection.
type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log.WithComponent("migrator"),
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		m.logger.Infof("Running migration %d: %s", migration.Version, migration.Description)
		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection(migrationsCollection).FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.db.Collection(migrationsCollection).ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)
	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create rides indexes",
			Up:          createRidesIndexes,
		},
		{
			Version:     2,
			Description: "Create riders indexes",
			Up:          createRidersIndexes,
		},
		{
			Version:     3,
			Description: "Create users indexes",
			Up:          createUsersIndexes,
		},
	}
}

func createRidesIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "request_time", Value: -1}}},
		{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "request_time", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "preferred_rider_gender", Value: 1}}},
	}
	_, err := db.Collection(RidesCollection).Indexes().CreateMany(ctx, indexes)
	return err
}

func createRidersIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "is_available", Value: 1}, {Key: "gender", Value: 1}}},
	}
	_, err := db.Collection(RidersCollection).Indexes().CreateMany(ctx, indexes)
	return err
}

func createUsersIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, indexes)
	return err
}
