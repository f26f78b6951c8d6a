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

type AlertRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

type alertDoc struct {
	ID             int64  `bson:"_id"`
	EventID        int64  `bson:"eventId"`
	RuleID         int64  `bson:"ruleId"`
	Channel        string `bson:"channel"`
	Recipient      string `bson:"recipient"`
	Subject        string `bson:"subject,omitempty"`
	Message        string `bson:"message,omitempty"`
	Status         string `bson:"status"`
	SentAt         int64  `bson:"sentAt,omitempty"`
	Acknowledged   bool   `bson:"acknowledged"`
	AcknowledgedBy int64  `bson:"acknowledgedBy,omitempty"`
	AcknowledgedAt int64  `bson:"acknowledgedAt,omitempty"`
	CreatedAt      int64  `bson:"createdAt"`
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{db: db, collection: db.Collection("alerts")}
}

func (r *AlertRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *AlertRepository) Create(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if alert.Status == "" {
		alert.Status = domain.AlertPending
	}
	if err := alert.Validate(); err != nil {
		return domain.Alert{}, err
	}
	id, err := nextID(ctx, r.db, "alerts")
	if err != nil {
		return domain.Alert{}, err
	}
	alert.ID = id
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, alertToDoc(alert)); err != nil {
		return domain.Alert{}, err
	}
	return alert, nil
}

func (r *AlertRepository) Get(ctx context.Context, id int64) (domain.Alert, error) {
	var doc alertDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Alert{}, domain.ErrNotFound
		}
		return domain.Alert{}, err
	}
	return alertFromDoc(doc), nil
}

func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	query := bson.M{}
	if filter.EventID > 0 {
		query["eventId"] = filter.EventID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Channel != "" {
		query["channel"] = string(filter.Channel)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
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

	var docs []alertDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	alerts := make([]domain.Alert, 0, len(docs))
	for _, doc := range docs {
		alerts = append(alerts, alertFromDoc(doc))
	}
	return alerts, nil
}

func (r *AlertRepository) UpdateStatus(ctx context.Context, id int64, status domain.AlertStatus) error {
	set := bson.M{"status": string(status)}
	if status == domain.AlertSent {
		set["sentAt"] = time.Now().UTC().Unix()
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func alertToDoc(a domain.Alert) alertDoc {
	doc := alertDoc{
		ID:             a.ID,
		EventID:        a.EventID,
		RuleID:         a.RuleID,
		Channel:        string(a.Channel),
		Recipient:      a.Recipient,
		Subject:        a.Subject,
		Message:        a.Message,
		Status:         string(a.Status),
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		CreatedAt:      a.CreatedAt.Unix(),
	}
	if !a.SentAt.IsZero() {
		doc.SentAt = a.SentAt.Unix()
	}
	if !a.AcknowledgedAt.IsZero() {
		doc.AcknowledgedAt = a.AcknowledgedAt.Unix()
	}
	return doc
}

func alertFromDoc(doc alertDoc) domain.Alert {
	a := domain.Alert{
		ID:             doc.ID,
		EventID:        doc.EventID,
		RuleID:         doc.RuleID,
		Channel:        domain.Channel(doc.Channel),
		Recipient:      doc.Recipient,
		Subject:        doc.Subject,
		Message:        doc.Message,
		Status:         domain.AlertStatus(doc.Status),
		Acknowledged:   doc.Acknowledged,
		AcknowledgedBy: doc.AcknowledgedBy,
		CreatedAt:      time.Unix(doc.CreatedAt, 0).UTC(),
	}
	if doc.SentAt != 0 {
		a.SentAt = time.Unix(doc.SentAt, 0).UTC()
	}
	if doc.AcknowledgedAt != 0 {
		a.AcknowledgedAt = time.Unix(doc.AcknowledgedAt, 0).UTC()
	}
	return a
}
