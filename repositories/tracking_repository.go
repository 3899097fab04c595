package repositories

import (
	"context"
	"errors"
	"time"

	"visitguard/models"
	"visitguard/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const TrackingSessionsCollection = "tracking_sessions"

type TrackingRepository struct {
	collection *mongo.Collection
}

func NewTrackingRepository(database *mongo.Database) *TrackingRepository {
	return &TrackingRepository{
		collection: database.Collection(TrackingSessionsCollection),
	}
}

// =================== BASIC CRUD OPERATIONS ===================

func (tr *TrackingRepository) Create(ctx context.Context, session *models.TrackingSession) error {
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	_, err := tr.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.ErrDuplicateVisit
		}
		logrus.Errorf("Failed to create tracking session %s: %v", session.VisitID, err)
		return utils.NewDatabaseError("insert session", err)
	}

	return nil
}

func (tr *TrackingRepository) GetByVisitID(ctx context.Context, visitID string) (*models.TrackingSession, error) {
	return tr.findOne(ctx, bson.M{"visitId": visitID})
}

func (tr *TrackingRepository) GetByShareToken(ctx context.Context, token string) (*models.TrackingSession, error) {
	return tr.findOne(ctx, bson.M{"sharedWith.token": token})
}

// Save replaces the stored session if nobody else saved it since it was loaded.
func (tr *TrackingRepository) Save(ctx context.Context, session *models.TrackingSession) error {
	expected := session.Version
	session.Version = expected + 1

	result, err := tr.collection.ReplaceOne(
		ctx,
		bson.M{"visitId": session.VisitID, "version": expected},
		session,
	)
	if err != nil {
		session.Version = expected
		logrus.Errorf("Failed to save tracking session %s: %v", session.VisitID, err)
		return utils.NewDatabaseError("replace session", err)
	}

	if result.MatchedCount == 0 {
		session.Version = expected
		return utils.ErrVersionConflict
	}

	return nil
}

// =================== QUERIES ===================

func (tr *TrackingRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.TrackingSession, error) {
	filter := bson.M{
		"isActive":       true,
		"isPaused":       bson.M{"$ne": true},
		"nextCheckInDue": bson.M{"$lt": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "nextCheckInDue", Value: 1}})

	return tr.find(ctx, filter, opts)
}

func (tr *TrackingRepository) ListActive(ctx context.Context) ([]models.TrackingSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	return tr.find(ctx, bson.M{"isActive": true}, opts)
}

func (tr *TrackingRepository) ListWithActiveAlerts(ctx context.Context) ([]models.TrackingSession, error) {
	filter := bson.M{"panicAlerts.status": models.PanicStatusActive}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}})
	return tr.find(ctx, filter, opts)
}

// =================== INDEXES ===================

func (tr *TrackingRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "visitId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("visit_unique"),
		},
		{
			Keys: bson.D{{Key: "sharedWith.token", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("share_token_unique").
				SetPartialFilterExpression(bson.M{"sharedWith.token": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "nextCheckInDue", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "panicAlerts.status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "professionalId", Value: 1}, {Key: "startedAt", Value: -1}},
		},
	}

	_, err := tr.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logrus.Errorf("Failed to create tracking session indexes: %v", err)
		return err
	}

	return nil
}

// =================== HELPERS ===================

func (tr *TrackingRepository) findOne(ctx context.Context, filter bson.M) (*models.TrackingSession, error) {
	var session models.TrackingSession
	err := tr.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		logrus.Errorf("Failed to get tracking session: %v", err)
		return nil, utils.NewDatabaseError("find session", err)
	}

	return &session, nil
}

func (tr *TrackingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.TrackingSession, error) {
	cursor, err := tr.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.Errorf("Failed to query tracking sessions: %v", err)
		return nil, utils.NewDatabaseError("query sessions", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.TrackingSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, utils.NewDatabaseError("decode sessions", err)
	}

	return sessions, nil
}
