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

type EventRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

type eventDoc struct {
	ID             int64          `bson:"_id"`
	CameraID       int64          `bson:"cameraId"`
	EventType      string         `bson:"eventType"`
	EventCode      string         `bson:"eventCode"`
	Severity       string         `bson:"severity"`
	Confidence     float64        `bson:"confidence"`
	Timestamp      int64          `bson:"timestamp"`
	FrameNumber    *int           `bson:"frameNumber,omitempty"`
	ClipPath       string         `bson:"clipPath,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	Description    string         `bson:"description,omitempty"`
	Acknowledged   bool           `bson:"acknowledged"`
	AcknowledgedBy int64          `bson:"acknowledgedBy,omitempty"`
	AcknowledgedAt int64          `bson:"acknowledgedAt,omitempty"`
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{db: db, collection: db.Collection("events")}
}

func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "cameraId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "severity", Value: 1}}},
		{Keys: bson.D{{Key: "eventType", Value: 1}}},
		{Keys: bson.D{{Key: "acknowledged", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.Severity == "" {
		event.Severity = domain.SeverityMedium
	}
	if err := event.Validate(); err != nil {
		return domain.Event{}, err
	}
	id, err := nextID(ctx, r.db, "events")
	if err != nil {
		return domain.Event{}, err
	}
	event.ID = id
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, eventToDoc(event)); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Get(ctx context.Context, id int64) (domain.Event, error) {
	var doc eventDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, err
	}
	return eventFromDoc(doc), nil
}

func (r *EventRepository) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	query := eventQuery(filter)

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
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

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, eventFromDoc(doc))
	}
	return events, nil
}

// Acknowledge sets the acknowledgement triple once. Re-acknowledging is a
// no-op that keeps the original user and time.
func (r *EventRepository) Acknowledge(ctx context.Context, id int64, userID int64) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "acknowledged": false},
		bson.M{"$set": bson.M{
			"acknowledged":   true,
			"acknowledgedBy": userID,
			"acknowledgedAt": time.Now().UTC().Unix(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing event from an already-acknowledged one.
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

// UpdateClipPath records where the evidence clip for an event was written.
func (r *EventRepository) UpdateClipPath(ctx context.Context, id int64, clipPath string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"clipPath": clipPath}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EventRepository) CountBySeverity(ctx context.Context, filter domain.EventFilter) (map[domain.Severity]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: eventQuery(filter)}},
		{{Key: "$group", Value: bson.M{"_id": "$severity", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Severity string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[domain.Severity]int64, len(rows))
	for _, row := range rows {
		counts[domain.Severity(row.Severity)] = row.Count
	}
	return counts, nil
}

func eventQuery(filter domain.EventFilter) bson.M {
	query := bson.M{}
	if filter.CameraID > 0 {
		query["cameraId"] = filter.CameraID
	}
	if filter.EventType != "" {
		query["eventType"] = string(filter.EventType)
	}
	if filter.Severity != "" {
		query["severity"] = string(filter.Severity)
	}
	if filter.Acknowledged != nil {
		query["acknowledged"] = *filter.Acknowledged
	}
	timeRange := bson.M{}
	if !filter.Since.IsZero() {
		timeRange["$gte"] = filter.Since.Unix()
	}
	if !filter.Until.IsZero() {
		timeRange["$lte"] = filter.Until.Unix()
	}
	if len(timeRange) > 0 {
		query["timestamp"] = timeRange
	}
	return query
}

func eventToDoc(e domain.Event) eventDoc {
	doc := eventDoc{
		ID:             e.ID,
		CameraID:       e.CameraID,
		EventType:      string(e.EventType),
		EventCode:      e.EventCode,
		Severity:       string(e.Severity),
		Confidence:     e.Confidence,
		Timestamp:      e.Timestamp.Unix(),
		FrameNumber:    e.FrameNumber,
		ClipPath:       e.ClipPath,
		Metadata:       e.Metadata,
		Description:    e.Description,
		Acknowledged:   e.Acknowledged,
		AcknowledgedBy: e.AcknowledgedBy,
	}
	if !e.AcknowledgedAt.IsZero() {
		doc.AcknowledgedAt = e.AcknowledgedAt.Unix()
	}
	return doc
}

func eventFromDoc(doc eventDoc) domain.Event {
	e := domain.Event{
		ID:             doc.ID,
		CameraID:       doc.CameraID,
		EventType:      domain.EventType(doc.EventType),
		EventCode:      doc.EventCode,
		Severity:       domain.Severity(doc.Severity),
		Confidence:     doc.Confidence,
		Timestamp:      time.Unix(doc.Timestamp, 0).UTC(),
		FrameNumber:    doc.FrameNumber,
		ClipPath:       doc.ClipPath,
		Metadata:       doc.Metadata,
		Description:    doc.Description,
		Acknowledged:   doc.Acknowledged,
		AcknowledgedBy: doc.AcknowledgedBy,
	}
	if doc.AcknowledgedAt != 0 {
		e.AcknowledgedAt = time.Unix(doc.AcknowledgedAt, 0).UTC()
	}
	return e
}
