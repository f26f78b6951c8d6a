package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visionstream/internal/domain"
)

type CameraRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

type zoneDoc struct {
	ID      string       `bson:"id"`
	Name    string       `bson:"name,omitempty"`
	Polygon [][2]float64 `bson:"polygon"`
}

type cameraDoc struct {
	ID          int64          `bson:"_id"`
	Name        string         `bson:"name"`
	Description string         `bson:"description,omitempty"`
	Location    string         `bson:"location,omitempty"`
	StreamURL   string         `bson:"streamUrl,omitempty"`
	StreamType  string         `bson:"streamType"`
	Status      string         `bson:"status"`
	Zones       []zoneDoc      `bson:"zones,omitempty"`
	Metadata    map[string]any `bson:"metadata,omitempty"`
	CreatedAt   int64          `bson:"createdAt"`
	UpdatedAt   int64          `bson:"updatedAt"`
}

func NewCameraRepository(db *mongo.Database) *CameraRepository {
	return &CameraRepository{db: db, collection: db.Collection("cameras")}
}

func (r *CameraRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *CameraRepository) Create(ctx context.Context, camera domain.Camera) (domain.Camera, error) {
	if err := camera.Validate(); err != nil {
		return domain.Camera{}, err
	}
	id, err := nextID(ctx, r.db, "cameras")
	if err != nil {
		return domain.Camera{}, err
	}
	camera.ID = id
	now := time.Now().UTC()
	camera.CreatedAt = now
	camera.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, cameraToDoc(camera)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Camera{}, domain.ErrAlreadyExists
		}
		return domain.Camera{}, err
	}
	return camera, nil
}

func (r *CameraRepository) Get(ctx context.Context, id int64) (domain.Camera, error) {
	var doc cameraDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Camera{}, domain.ErrNotFound
		}
		return domain.Camera{}, err
	}
	return cameraFromDoc(doc), nil
}

func (r *CameraRepository) List(ctx context.Context, filter domain.CameraFilter) ([]domain.Camera, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Location != "" {
		query["location"] = filter.Location
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []cameraDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	cameras := make([]domain.Camera, 0, len(docs))
	for _, doc := range docs {
		cameras = append(cameras, cameraFromDoc(doc))
	}
	return cameras, nil
}

func (r *CameraRepository) Update(ctx context.Context, camera domain.Camera) error {
	if err := camera.Validate(); err != nil {
		return err
	}
	camera.UpdatedAt = time.Now().UTC()
	doc := cameraToDoc(camera)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": camera.ID}, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"location":    doc.Location,
		"streamUrl":   doc.StreamURL,
		"streamType":  doc.StreamType,
		"status":      doc.Status,
		"zones":       doc.Zones,
		"metadata":    doc.Metadata,
		"updatedAt":   doc.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CameraRepository) UpdateStatus(ctx context.Context, id int64, status domain.CameraStatus) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    string(status),
		"updatedAt": time.Now().UTC().Unix(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CameraRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func cameraToDoc(c domain.Camera) cameraDoc {
	zones := make([]zoneDoc, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, zoneDoc{ID: z.ID, Name: z.Name, Polygon: z.Polygon})
	}
	return cameraDoc{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		StreamURL:   c.StreamURL,
		StreamType:  string(c.StreamType),
		Status:      string(c.Status),
		Zones:       zones,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt.Unix(),
		UpdatedAt:   c.UpdatedAt.Unix(),
	}
}

func cameraFromDoc(doc cameraDoc) domain.Camera {
	zones := make([]domain.Zone, 0, len(doc.Zones))
	for _, z := range doc.Zones {
		zones = append(zones, domain.Zone{ID: z.ID, Name: z.Name, Polygon: z.Polygon})
	}
	return domain.Camera{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Location:    doc.Location,
		StreamURL:   doc.StreamURL,
		StreamType:  domain.StreamType(doc.StreamType),
		Status:      domain.CameraStatus(doc.Status),
		Zones:       zones,
		Metadata:    doc.Metadata,
		CreatedAt:   time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
