package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visionstream/internal/domain"
)

type RuleRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

type alertTargetDoc struct {
	Channel   string `bson:"channel"`
	Recipient string `bson:"recipient"`
	Subject   string `bson:"subject,omitempty"`
	Message   string `bson:"message,omitempty"`
}

type ruleDoc struct {
	ID                  int64            `bson:"_id"`
	Name                string           `bson:"name"`
	Description         string           `bson:"description,omitempty"`
	EventCode           string           `bson:"eventCode"`
	EventType           string           `bson:"eventType"`
	IsActive            bool             `bson:"isActive"`
	ConfidenceThreshold float64          `bson:"confidenceThreshold"`
	CameraIDs           []int64          `bson:"cameraIds,omitempty"`
	Conditions          string           `bson:"conditions,omitempty"` // JSON, parsed on read
	AlertTargets        []alertTargetDoc `bson:"alertTargets,omitempty"`
	CreatedAt           int64            `bson:"createdAt"`
	UpdatedAt           int64            `bson:"updatedAt"`
}

func NewRuleRepository(db *mongo.Database) *RuleRepository {
	return &RuleRepository{db: db, collection: db.Collection("rules")}
}

func (r *RuleRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "cameraIds", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *RuleRepository) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	if err := rule.Validate(); err != nil {
		return domain.Rule{}, err
	}
	id, err := nextID(ctx, r.db, "rules")
	if err != nil {
		return domain.Rule{}, err
	}
	rule.ID = id
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	doc, err := ruleToDoc(rule)
	if err != nil {
		return domain.Rule{}, err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Rule{}, domain.ErrAlreadyExists
		}
		return domain.Rule{}, err
	}
	return rule, nil
}

func (r *RuleRepository) Get(ctx context.Context, id int64) (domain.Rule, error) {
	var doc ruleDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Rule{}, domain.ErrNotFound
		}
		return domain.Rule{}, err
	}
	return ruleFromDoc(doc)
}

func (r *RuleRepository) List(ctx context.Context, filter domain.RuleFilter) ([]domain.Rule, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["isActive"] = true
	}
	if filter.CameraID > 0 {
		// A rule applies when it names the camera or carries no filter.
		query["$or"] = bson.A{
			bson.M{"cameraIds": filter.CameraID},
			bson.M{"cameraIds": bson.M{"$exists": false}},
			bson.M{"cameraIds": bson.M{"$size": 0}},
		}
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

	var docs []ruleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	rules := make([]domain.Rule, 0, len(docs))
	for _, doc := range docs {
		rule, err := ruleFromDoc(doc)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *RuleRepository) Update(ctx context.Context, rule domain.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()
	doc, err := ruleToDoc(rule)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": rule.ID}, bson.M{"$set": bson.M{
		"name":                doc.Name,
		"description":         doc.Description,
		"eventCode":           doc.EventCode,
		"eventType":           doc.EventType,
		"isActive":            doc.IsActive,
		"confidenceThreshold": doc.ConfidenceThreshold,
		"cameraIds":           doc.CameraIDs,
		"conditions":          doc.Conditions,
		"alertTargets":        doc.AlertTargets,
		"updatedAt":           doc.UpdatedAt,
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

func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func ruleToDoc(rule domain.Rule) (ruleDoc, error) {
	conditions := ""
	if len(rule.Conditions) > 0 {
		raw, err := domain.EncodeConditions(rule.Conditions)
		if err != nil {
			return ruleDoc{}, err
		}
		conditions = string(raw)
	}
	targets := make([]alertTargetDoc, 0, len(rule.AlertTargets))
	for _, t := range rule.AlertTargets {
		targets = append(targets, alertTargetDoc{
			Channel:   string(t.Channel),
			Recipient: t.Recipient,
			Subject:   t.Subject,
			Message:   t.Message,
		})
	}
	return ruleDoc{
		ID:                  rule.ID,
		Name:                rule.Name,
		Description:         rule.Description,
		EventCode:           rule.EventCode,
		EventType:           string(rule.EventType),
		IsActive:            rule.IsActive,
		ConfidenceThreshold: rule.ConfidenceThreshold,
		CameraIDs:           rule.CameraIDs,
		Conditions:          conditions,
		AlertTargets:        targets,
		CreatedAt:           rule.CreatedAt.Unix(),
		UpdatedAt:           rule.UpdatedAt.Unix(),
	}, nil
}

func ruleFromDoc(doc ruleDoc) (domain.Rule, error) {
	var conditions []domain.Condition
	if doc.Conditions != "" {
		parsed, err := domain.ParseConditions(json.RawMessage(doc.Conditions))
		if err != nil {
			return domain.Rule{}, err
		}
		conditions = parsed
	}
	targets := make([]domain.AlertTarget, 0, len(doc.AlertTargets))
	for _, t := range doc.AlertTargets {
		targets = append(targets, domain.AlertTarget{
			Channel:   domain.Channel(t.Channel),
			Recipient: t.Recipient,
			Subject:   t.Subject,
			Message:   t.Message,
		})
	}
	return domain.Rule{
		ID:                  doc.ID,
		Name:                doc.Name,
		Description:         doc.Description,
		EventCode:           doc.EventCode,
		EventType:           domain.EventType(doc.EventType),
		IsActive:            doc.IsActive,
		ConfidenceThreshold: doc.ConfidenceThreshold,
		CameraIDs:           doc.CameraIDs,
		Conditions:          conditions,
		AlertTargets:        targets,
		CreatedAt:           time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt:           time.Unix(doc.UpdatedAt, 0).UTC(),
	}, nil
}
