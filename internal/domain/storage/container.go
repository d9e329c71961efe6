package storage

import (
	"context"
	"fmt"

	"cozy/internal/domain/memstore"
	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/users"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Container struct {
	Driver  string
	Places  places.Store
	Ratings ratings.Store
	Users   users.Store

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		Driver:  DriverPostgres,
		Places:  places.NewRepository(db),
		Ratings: ratings.NewRepository(db),
		Users:   users.NewRepository(db),
		ping:    db.Ping,
		close: func(context.Context) error {
			db.Close()
			return nil
		},
	}
}

func NewMongoContainer(db *mongo.Database) *Container {
	client := db.Client()
	return &Container{
		Driver:  DriverMongo,
		Places:  places.NewMongoRepository(db),
		Ratings: ratings.NewMongoRepository(db),
		Users:   users.NewMongoRepository(db),
		ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:   client.Disconnect,
	}
}

func NewMemoryContainer() *Container {
	mem := memstore.New()
	return &Container{
		Driver:  DriverMemory,
		Places:  mem.Places(),
		Ratings: mem.Ratings(),
		Users:   mem.Users(),
	}
}

// Ping checks the backing store is reachable.
func (c *Container) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("%s store unreachable: %w", c.Driver, err)
	}
	return nil
}

func (c *Container) Close(ctx context.Context) error {
	if c.close == nil {
		return nil
	}
	return c.close(ctx)
}
