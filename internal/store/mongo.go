package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "canvass"

// responseDoc is a stored response plus its position in the submission.
type responseDoc struct {
	questionnaire.Response `bson:",inline"`
	Position               int `bson:"position"`
}

// MongoStore keeps questionnaires and responses in MongoDB.
type MongoStore struct {
	client         *mongo.Client
	questionnaires *mongo.Collection
	responses      *mongo.Collection
	receipts       *mongo.Collection
}

// OpenMongo connects to uri and returns a store over database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "connect to mongodb", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "mongodb ping failed", err)
	}

	s := NewMongoStore(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps a connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:         client,
		questionnaires: db.Collection("questionnaires"),
		responses:      db.Collection("responses"),
		receipts:       db.Collection("receipts"),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "questionnaire_id", Value: 1}, {Key: "position", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "create response index", err)
	}
	return nil
}

func (s *MongoStore) ListQuestionnaires(ctx context.Context) ([]questionnaire.Questionnaire, error) {
	cursor, err := s.questionnaires.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "list questionnaires", err)
	}
	defer cursor.Close(ctx)

	var out []questionnaire.Questionnaire
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "decode questionnaires", err)
	}
	return out, nil
}

func (s *MongoStore) GetQuestionnaire(ctx context.Context, id int) (*questionnaire.Questionnaire, error) {
	var qn questionnaire.Questionnaire
	err := s.questionnaires.FindOne(ctx, bson.M{"_id": id}).Decode(&qn)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewQuestionnaireNotFoundError(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("get questionnaire %d", id), err)
	}
	return &qn, nil
}

func (s *MongoStore) PutQuestionnaire(ctx context.Context, qn *questionnaire.Questionnaire) error {
	if err := qn.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeQuestionnaireInvalid, "refusing to store invalid questionnaire", err)
	}
	_, err := s.questionnaires.ReplaceOne(ctx, bson.M{"_id": qn.ID}, qn, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("put questionnaire %d", qn.ID), err)
	}
	return nil
}

func (s *MongoStore) Responses(ctx context.Context, userID string, questionnaireID int) ([]questionnaire.Response, error) {
	filter := bson.M{"user_id": userID, "questionnaire_id": questionnaireID}
	cursor, err := s.responses.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "query responses", err)
	}
	defer cursor.Close(ctx)

	var docs []responseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "decode responses", err)
	}

	out := make([]questionnaire.Response, len(docs))
	for i, d := range docs {
		d.Response.SubmittedAt = d.Response.SubmittedAt.UTC()
		out[i] = d.Response
	}
	return out, nil
}

// SaveResponses deletes then inserts. Standalone servers have no
// multi-document transactions, so a crash between the two steps can leave
// the user with no stored responses.
func (s *MongoStore) SaveResponses(ctx context.Context, userID string, questionnaireID int, responses []questionnaire.Response) (*questionnaire.Receipt, error) {
	at := now().Truncate(time.Millisecond)
	stamped := stamp(userID, questionnaireID, responses, at)
	receipt := NewReceipt(userID, questionnaireID, stamped, at)

	filter := bson.M{"user_id": userID, "questionnaire_id": questionnaireID}
	if _, err := s.responses.DeleteMany(ctx, filter); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "clear previous responses", err)
	}

	if len(stamped) > 0 {
		docs := make([]any, len(stamped))
		for i, r := range stamped {
			docs[i] = responseDoc{Response: r, Position: i}
		}
		if _, err := s.responses.InsertMany(ctx, docs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "insert responses", err)
		}
	}

	if _, err := s.receipts.InsertOne(ctx, receipt); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "insert receipt", err)
	}
	return receipt, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "mongodb ping failed", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
