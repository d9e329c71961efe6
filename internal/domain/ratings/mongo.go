package ratings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"cozy/internal/db"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type payloadDocument struct {
	WarmLighting    *float64 `bson:"warmLighting,omitempty"`
	RelaxedMusic    *float64 `bson:"relaxedMusic,omitempty"`
	CalmEnvironment *float64 `bson:"calmEnvironment,omitempty"`
	SoftFabrics     *float64 `bson:"softFabrics,omitempty"`
	ComfySeating    *float64 `bson:"comfySeating,omitempty"`
	HotFoodDrink    *float64 `bson:"hotFoodDrink,omitempty"`
	Comment         *string  `bson:"comment,omitempty"`
}

type ratingDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	PlaceID   primitive.ObjectID `bson:"placeId"`
	UserID    primitive.ObjectID `bson:"userId"`
	Rating    payloadDocument    `bson:"rating"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toPayloadDocument(p Payload) payloadDocument {
	return payloadDocument(p)
}

func (d *ratingDocument) toRating() Rating {
	return Rating{
		ID:        d.ID.Hex(),
		PlaceID:   d.PlaceID.Hex(),
		UserID:    d.UserID.Hex(),
		Rating:    Payload(d.Rating),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type MongoRepository struct {
	ratings *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) Store {
	return &MongoRepository{ratings: database.Collection(db.RatingsCollection)}
}

func objectIDs(ids ...string) ([]primitive.ObjectID, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", id, err)
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

func (r *MongoRepository) findMany(ctx context.Context, filter bson.M, sort bson.D) ([]Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	cursor, err := r.ratings.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, db.Classify(fmt.Errorf("error querying ratings: %w", err))
	}

	var docs []ratingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, db.Classify(err)
	}

	ratings := make([]Rating, 0, len(docs))
	for i := range docs {
		ratings = append(ratings, docs[i].toRating())
	}
	return ratings, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var doc ratingDocument
	if err := r.ratings.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	rating := doc.toRating()
	return &rating, nil
}

func (r *MongoRepository) Create(ctx context.Context, rating *Rating) error {
	oids, err := objectIDs(rating.PlaceID, rating.UserID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	doc := ratingDocument{
		ID:        primitive.NewObjectID(),
		PlaceID:   oids[0],
		UserID:    oids[1],
		Rating:    toPayloadDocument(rating.Rating),
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	if _, err := r.ratings.InsertOne(ctx, doc); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return db.Classify(fmt.Errorf("insert rating: %w", err))
	}

	*rating = doc.toRating()
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Rating, error) {
	oids, err := objectIDs(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oids[0]})
}

func (r *MongoRepository) GetByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error) {
	oids, err := objectIDs(placeID, userID)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"placeId": oids[0], "userId": oids[1]})
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string, filter Filter) ([]Rating, error) {
	oids, err := objectIDs(userID)
	if err != nil {
		return nil, err
	}

	query := bson.M{"userId": oids[0]}
	if filter.PlaceID != "" {
		placeOIDs, err := objectIDs(filter.PlaceID)
		if err != nil {
			return nil, err
		}
		query["placeId"] = placeOIDs[0]
	}
	if filter.SearchTerm != "" {
		query["rating.comment"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.SearchTerm), Options: "i"}
	}

	return r.findMany(ctx, query, bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: 1}})
}

func (r *MongoRepository) ListByPlace(ctx context.Context, placeID string) ([]Rating, error) {
	oids, err := objectIDs(placeID)
	if err != nil {
		return nil, err
	}
	return r.findMany(ctx, bson.M{"placeId": oids[0]}, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}

func (r *MongoRepository) Update(ctx context.Context, rating *Rating) error {
	oids, err := objectIDs(rating.ID)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var doc ratingDocument
	err = r.ratings.FindOneAndUpdate(ctx,
		bson.M{"_id": oids[0]},
		bson.M{"$set": bson.M{
			"rating":    toPayloadDocument(rating.Rating),
			"updatedAt": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("update rating: %w", err))
	}

	*rating = doc.toRating()
	return nil
}

func (r *MongoRepository) DeleteByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error) {
	oids, err := objectIDs(placeID, userID)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var doc ratingDocument
	err = r.ratings.FindOneAndDelete(ctx, bson.M{"placeId": oids[0], "userId": oids[1]}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("delete rating: %w", err))
	}

	rating := doc.toRating()
	return &rating, nil
}
