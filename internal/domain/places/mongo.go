package places

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cozy/internal/db"
	"cozy/internal/geo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type placeDocument struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Type        string               `bson:"type"`
	Address     string               `bson:"address"`
	City        string               `bson:"city"`
	State       string               `bson:"state"`
	Zipcode     string               `bson:"zipcode"`
	Location    geoJSONPoint         `bson:"location"`
	Averages    Scores               `bson:"averages"`
	Cozyness    float64              `bson:"cozyness"`
	UserReports []primitive.ObjectID `bson:"userReports"`
	Archived    bool                 `bson:"archived"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func (d *placeDocument) toPlace() Place {
	reports := make([]string, 0, len(d.UserReports))
	for _, id := range d.UserReports {
		reports = append(reports, id.Hex())
	}
	return Place{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Type:        d.Type,
		Address:     d.Address,
		City:        d.City,
		State:       d.State,
		Zipcode:     d.Zipcode,
		Location:    d.Location.Coordinates,
		Averages:    d.Averages,
		Cozyness:    d.Cozyness,
		UserReports: reports,
		Archived:    d.Archived,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type photoDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	PlaceID   primitive.ObjectID `bson:"placeId"`
	UserID    primitive.ObjectID `bson:"userId"`
	URL       string             `bson:"url"`
	Caption   string             `bson:"caption"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoRepository keeps places as documents with a GeoJSON location and the
// reporting users embedded in the place.
type MongoRepository struct {
	places *mongo.Collection
	photos *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) Store {
	return &MongoRepository{
		places: database.Collection(db.PlacesCollection),
		photos: database.Collection(db.PhotosCollection),
	}
}

func (r *MongoRepository) Create(ctx context.Context, place *Place) error {
	if len(place.Location) != 2 {
		return fmt.Errorf("place location must be [longitude, latitude]")
	}

	oid := primitive.NewObjectID()
	if place.ID != "" {
		var err error
		if oid, err = primitive.ObjectIDFromHex(place.ID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	doc := placeDocument{
		ID:          oid,
		Name:        place.Name,
		Type:        place.Type,
		Address:     place.Address,
		City:        place.City,
		State:       place.State,
		Zipcode:     place.Zipcode,
		Location:    geoJSONPoint{Type: "Point", Coordinates: place.Location},
		UserReports: []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	if _, err := r.places.InsertOne(ctx, doc); err != nil {
		return db.Classify(fmt.Errorf("insert place: %w", err))
	}

	*place = doc.toPlace()
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Place, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var doc placeDocument
	if err := r.places.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	p := doc.toPlace()
	return &p, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]Place, error) {
	query := bson.M{"archived": false}
	if filter.Near != nil {
		query["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{
					bson.A{filter.Near.Longitude, filter.Near.Latitude},
					geo.RadiusRadians(filter.Radius),
				},
			},
		}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	cursor, err := r.places.Find(ctx, query, opts)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("error querying places: %w", err))
	}

	var docs []placeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, db.Classify(err)
	}

	places := make([]Place, 0, len(docs))
	for i := range docs {
		places = append(places, docs[i].toPlace())
	}
	return places, nil
}

func (r *MongoRepository) UpdateAverages(ctx context.Context, id string, averages Scores, cozyness float64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	// a single $set keeps the seven fields consistent with each other
	result, err := r.places.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"averages":  averages,
			"cozyness":  cozyness,
			"updatedAt": time.Now().UTC(),
		},
	})
	if err != nil {
		return db.Classify(fmt.Errorf("failed to update averages: %w", err))
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) AddPhoto(ctx context.Context, photo *Photo) error {
	placeOID, err := primitive.ObjectIDFromHex(photo.PlaceID)
	if err != nil {
		return ErrNotFound
	}
	userOID, err := primitive.ObjectIDFromHex(photo.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	n, err := r.places.CountDocuments(ctx, bson.M{"_id": placeOID})
	if err != nil {
		return db.Classify(err)
	}
	if n == 0 {
		return ErrNotFound
	}

	doc := photoDocument{
		ID:        primitive.NewObjectID(),
		PlaceID:   placeOID,
		UserID:    userOID,
		URL:       photo.URL,
		Caption:   photo.Caption,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.photos.InsertOne(ctx, doc); err != nil {
		return db.Classify(fmt.Errorf("failed to add photo: %w", err))
	}

	photo.ID = doc.ID.Hex()
	photo.CreatedAt = doc.CreatedAt
	return nil
}

func (r *MongoRepository) PhotosByPlace(ctx context.Context, placeIDs []string) (map[string][]Photo, error) {
	photos := make(map[string][]Photo, len(placeIDs))
	if len(placeIDs) == 0 {
		return photos, nil
	}

	oids := make([]primitive.ObjectID, 0, len(placeIDs))
	for _, id := range placeIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.photos.Find(ctx, bson.M{"placeId": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, db.Classify(err)
	}

	var docs []photoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, db.Classify(err)
	}

	for _, d := range docs {
		placeID := d.PlaceID.Hex()
		photos[placeID] = append(photos[placeID], Photo{
			ID:        d.ID.Hex(),
			PlaceID:   placeID,
			UserID:    d.UserID.Hex(),
			URL:       d.URL,
			Caption:   d.Caption,
			CreatedAt: d.CreatedAt,
		})
	}
	return photos, nil
}

func (r *MongoRepository) AddReport(ctx context.Context, placeID, userID string) (int, error) {
	placeOID, err := primitive.ObjectIDFromHex(placeID)
	if err != nil {
		return 0, ErrNotFound
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	// the $ne guard makes the duplicate check and the push one atomic step
	var doc placeDocument
	err = r.places.FindOneAndUpdate(ctx,
		bson.M{"_id": placeOID, "userReports": bson.M{"$ne": userOID}},
		bson.M{"$push": bson.M{"userReports": userOID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return len(doc.UserReports), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, db.Classify(fmt.Errorf("failed to add report: %w", err))
	}

	n, err := r.places.CountDocuments(ctx, bson.M{"_id": placeOID})
	if err != nil {
		return 0, db.Classify(err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return 0, ErrAlreadyReported
}

func (r *MongoRepository) RemoveReport(ctx context.Context, placeID, userID string) (int, error) {
	placeOID, err := primitive.ObjectIDFromHex(placeID)
	if err != nil {
		return 0, nil
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var doc placeDocument
	err = r.places.FindOneAndUpdate(ctx,
		bson.M{"_id": placeOID},
		bson.M{"$pull": bson.M{"userReports": userOID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, db.Classify(fmt.Errorf("failed to remove report: %w", err))
	}
	return len(doc.UserReports), nil
}

func (r *MongoRepository) ArchiveReported(ctx context.Context, threshold int) ([]string, error) {
	if threshold < 1 {
		threshold = 1
	}

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	// userReports.<threshold-1> exists exactly when the array holds >= threshold entries
	filter := bson.M{
		"archived": false,
		fmt.Sprintf("userReports.%d", threshold-1): bson.M{"$exists": true},
	}
	cursor, err := r.places.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, db.Classify(err)
	}

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, db.Classify(err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	oids := make([]primitive.ObjectID, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		oids = append(oids, d.ID)
		ids = append(ids, d.ID.Hex())
	}

	_, err = r.places.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "archived": false},
		bson.M{"$set": bson.M{"archived": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to archive places: %w", err))
	}
	return ids, nil
}
