package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// errStaleSnapshot means a model changed between read and conditional write.
var errStaleSnapshot = errors.New("stale rating snapshot")

// MongoStore implements store.Store on MongoDB. ApplyVote needs a replica
// set (or Atlas) because it runs in a multi-document transaction.
type MongoStore struct {
	db *MongoDB
}

func NewMongoStore(database *MongoDB) *MongoStore {
	return &MongoStore{db: database}
}

// DB exposes the underlying connection for collections outside the Store
// interface, such as the feed event relay.
func (s *MongoStore) DB() *MongoDB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func (s *MongoStore) CreateModel(ctx context.Context, m *models.Model) error {
	store.PrepareModel(m, time.Now())
	_, err := s.db.Models().InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *MongoStore) GetModel(ctx context.Context, id string) (*models.Model, error) {
	var m models.Model
	if err := s.db.Models().FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *MongoStore) ListModelsByRating(ctx context.Context, limit int) ([]models.Model, error) {
	opts := options.Find().SetSort(bson.D{{Key: "eloRating", Value: -1}, {Key: "modelName", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Models().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []models.Model
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *MongoStore) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	store.PreparePrompt(p, time.Now())
	_, err := s.db.Prompts().InsertOne(ctx, p)
	return err
}

func (s *MongoStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	cursor, err := s.db.Prompts().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []models.Prompt
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *MongoStore) CreateOutput(ctx context.Context, o *models.AsciiOutput) error {
	if err := s.db.Prompts().FindOne(ctx, bson.M{"_id": o.PromptID}).Err(); err != nil {
		return notFound(err)
	}
	if err := s.db.Models().FindOne(ctx, bson.M{"_id": o.ModelID}).Err(); err != nil {
		return notFound(err)
	}
	store.PrepareOutput(o, time.Now())
	_, err := s.db.Outputs().InsertOne(ctx, o)
	return err
}

func (s *MongoStore) GetOutput(ctx context.Context, id string) (*models.AsciiOutput, error) {
	var o models.AsciiOutput
	if err := s.db.Outputs().FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *MongoStore) ListOutputsByPrompt(ctx context.Context, promptID string) ([]models.AsciiOutput, error) {
	cursor, err := s.db.Outputs().Find(ctx, bson.M{"promptId": promptID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []models.AsciiOutput
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ApplyVote runs read, rate and write in one transaction. The model updates
// are conditional on the vote counts read, so a concurrent vote makes the
// attempt abort and start over from a fresh snapshot.
func (s *MongoStore) ApplyVote(ctx context.Context, vote *models.Vote, rate store.RateFunc) (*models.RatingChange, error) {
	if err := store.ValidateVote(vote); err != nil {
		return nil, err
	}
	return retryStale(ctx, func() (*models.RatingChange, error) {
		return s.applyOnce(ctx, vote, rate)
	})
}

// retryStale runs attempt until it stops reporting a stale snapshot, up to
// store.MaxApplyAttempts times.
func retryStale(ctx context.Context, attempt func() (*models.RatingChange, error)) (*models.RatingChange, error) {
	for n := 1; n <= store.MaxApplyAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		change, err := attempt()
		if errors.Is(err, errStaleSnapshot) {
			continue
		}
		if err != nil {
			return nil, err
		}
		change.Attempts = n
		return change, nil
	}
	return nil, store.ErrConflict
}

func (s *MongoStore) applyOnce(ctx context.Context, vote *models.Vote, rate store.RateFunc) (*models.RatingChange, error) {
	session, err := s.db.Client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var winner, loser models.Model
		if err := s.db.Models().FindOne(sc, bson.M{"_id": vote.WinnerModelID}).Decode(&winner); err != nil {
			return nil, notFound(err)
		}
		if err := s.db.Models().FindOne(sc, bson.M{"_id": vote.LoserModelID}).Decode(&loser); err != nil {
			return nil, notFound(err)
		}

		winnerNew, loserNew := rate(winner, loser)
		now := time.Now()

		if err := casRating(sc, s.db.Models(), &winner, winnerNew, "wins", now); err != nil {
			return nil, err
		}
		if err := casRating(sc, s.db.Models(), &loser, loserNew, "losses", now); err != nil {
			return nil, err
		}

		change := store.Settle(vote, &winner, &loser, winnerNew, loserNew, now)
		if _, err := s.db.Votes().InsertOne(sc, vote); err != nil {
			return nil, fmt.Errorf("failed to record vote: %w", err)
		}
		return change, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.RatingChange), nil
}

// modelUpdater is the part of *mongo.Collection casRating needs.
type modelUpdater interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// casRating writes the new rating only if the model's vote count still
// matches the snapshot.
func casRating(ctx context.Context, coll modelUpdater, snapshot *models.Model, newElo int, counter string, now time.Time) error {
	res, err := coll.UpdateOne(ctx, bson.M{
		"_id":       snapshot.ID,
		"voteCount": snapshot.VoteCount,
	}, bson.M{
		"$set": bson.M{
			"eloRating": newElo,
			"updatedAt": now,
		},
		"$inc": bson.M{
			"voteCount": 1,
			counter:     1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update model %s: %w", snapshot.ID, err)
	}
	if res.MatchedCount == 0 {
		return errStaleSnapshot
	}
	return nil
}

func (s *MongoStore) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	store.PrepareAuditEvent(e, time.Now())
	_, err := s.db.AuditLog().InsertOne(ctx, e)
	return err
}

func (s *MongoStore) Clear(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.db.Votes(), s.db.Outputs(), s.db.Prompts(), s.db.Models()} {
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to clear %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}
