package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	taskapp "github.com/lllypuk/tasktracker/internal/application/task"
	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/tag"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	mongodbinfra "github.com/lllypuk/tasktracker/internal/infrastructure/mongodb"
)

// TaskDocument is the stored form of a task. Tag links live in TagIDs.
type TaskDocument struct {
	ID               int64     `bson:"_id"`
	Title            string    `bson:"title"`
	Description      string    `bson:"description"`
	Status           string    `bson:"status"`
	Resolution       *string   `bson:"resolution"`
	CreatorID        int64     `bson:"creator_id"`
	AssigneeID       *int64    `bson:"assignee_id"`
	CloserID         *int64    `bson:"closer_id"`
	TagIDs           []int64   `bson:"tag_ids"`
	CreationTime     time.Time `bson:"creation_time"`
	ModificationTime time.Time `bson:"modification_time"`
	Version          int       `bson:"version"`
}

// TagDocument is the stored form of a tag.
type TagDocument struct {
	ID               int64     `bson:"_id"`
	Name             string    `bson:"name"`
	CreationTime     time.Time `bson:"creation_time"`
	ModificationTime time.Time `bson:"modification_time"`
	Version          int       `bson:"version"`
}

// UserAccountDocument is the stored form of a user account.
type UserAccountDocument struct {
	ID   int64  `bson:"_id"`
	Name string `bson:"name"`
}

// MongoTaskRepository implements taskapp.Repository.
type MongoTaskRepository struct {
	db     *mongo.Database
	tasks  *mongo.Collection
	tags   *mongo.Collection
	users  *mongo.Collection
	logger *zap.Logger
}

// TaskRepoOption configures MongoTaskRepository.
type TaskRepoOption func(*MongoTaskRepository)

// WithTaskRepoLogger sets the logger.
func WithTaskRepoLogger(logger *zap.Logger) TaskRepoOption {
	return func(r *MongoTaskRepository) {
		r.logger = logger
	}
}

// NewMongoTaskRepository creates a repository on db.
func NewMongoTaskRepository(db *mongo.Database, opts ...TaskRepoOption) *MongoTaskRepository {
	r := &MongoTaskRepository{
		db:     db,
		tasks:  db.Collection(mongodbinfra.CollectionTasks),
		tags:   db.Collection(mongodbinfra.CollectionTags),
		users:  db.Collection(mongodbinfra.CollectionUserAccounts),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ taskapp.Repository = (*MongoTaskRepository)(nil)

// FindAll returns tasks ordered by id.
func (r *MongoTaskRepository) FindAll(ctx context.Context, filters taskapp.Filters) ([]*task.Task, error) {
	filter := bson.M{}
	if filters.Status != nil {
		filter["status"] = string(*filters.Status)
	}

	cursor, err := r.tasks.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, HandleMongoError(err, "tasks")
	}

	var docs []TaskDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, HandleMongoError(err, "tasks")
	}

	return r.toDomain(ctx, docs)
}

// FindByID returns one task with its tags.
func (r *MongoTaskRepository) FindByID(ctx context.Context, id int64) (*task.Task, error) {
	var doc TaskDocument
	if err := r.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, HandleMongoError(err, fmt.Sprintf("task %d", id))
	}

	tasks, err := r.toDomain(ctx, []TaskDocument{doc})
	if err != nil {
		return nil, err
	}
	return tasks[0], nil
}

// Create assigns the next id from the counters collection and inserts the task.
func (r *MongoTaskRepository) Create(ctx context.Context, t *task.Task) error {
	if err := r.checkReferences(ctx, t); err != nil {
		return err
	}

	id, err := mongodbinfra.NextSequence(ctx, r.db, mongodbinfra.CollectionTasks)
	if err != nil {
		return err
	}

	doc := toDocument(t)
	doc.ID = id
	if _, err = r.tasks.InsertOne(ctx, doc); err != nil {
		return HandleMongoError(err, "task")
	}

	t.ID = id
	r.logger.Debug("task inserted", zap.Int64("task_id", t.ID))
	return nil
}

// Update stores the mutable fields when the version matches.
func (r *MongoTaskRepository) Update(ctx context.Context, t *task.Task) error {
	doc := toDocument(t)
	res, err := r.tasks.UpdateOne(ctx,
		bson.M{"_id": t.ID, "version": t.Version},
		bson.M{
			"$set": bson.M{
				"title":             doc.Title,
				"description":       doc.Description,
				"status":            doc.Status,
				"resolution":        doc.Resolution,
				"assignee_id":       doc.AssigneeID,
				"closer_id":         doc.CloserID,
				"modification_time": doc.ModificationTime,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return HandleMongoError(err, "task")
	}

	if res.MatchedCount == 0 {
		count, countErr := r.tasks.CountDocuments(ctx, bson.M{"_id": t.ID})
		if countErr != nil {
			return HandleMongoError(countErr, "task")
		}
		if count == 0 {
			return fmt.Errorf("task %d: %w", t.ID, errs.ErrNotFound)
		}
		return fmt.Errorf("task %d version %d: %w", t.ID, t.Version, errs.ErrConcurrentModification)
	}

	t.Version++
	return nil
}

// Delete removes the task document. The tag links are stored inside it, so
// one FindOneAndDelete removes both. Tag documents are not touched.
func (r *MongoTaskRepository) Delete(ctx context.Context, id int64) (*task.Task, error) {
	var doc TaskDocument
	if err := r.tasks.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, HandleMongoError(err, fmt.Sprintf("task %d", id))
	}

	tasks, err := r.toDomain(ctx, []TaskDocument{doc})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("task deleted",
		zap.Int64("task_id", id),
		zap.Int("tags_unlinked", len(doc.TagIDs)),
	)
	return tasks[0], nil
}

// checkReferences rejects unknown creators and tags the way SQL foreign keys do.
func (r *MongoTaskRepository) checkReferences(ctx context.Context, t *task.Task) error {
	count, err := r.users.CountDocuments(ctx, bson.M{"_id": t.CreatorID})
	if err != nil {
		return HandleMongoError(err, "user account")
	}
	if count == 0 {
		return fmt.Errorf("creator %d: %w", t.CreatorID, errs.ErrInvalidInput)
	}

	ids := t.TagIDs()
	if len(ids) == 0 {
		return nil
	}
	count, err = r.tags.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return HandleMongoError(err, "tags")
	}
	if int(count) != len(ids) {
		return fmt.Errorf("unknown tag in %v: %w", ids, errs.ErrInvalidInput)
	}
	return nil
}

// toDomain converts documents and resolves their tags with one $in query.
func (r *MongoTaskRepository) toDomain(ctx context.Context, docs []TaskDocument) ([]*task.Task, error) {
	tags, err := r.loadTags(ctx, docs)
	if err != nil {
		return nil, err
	}

	out := make([]*task.Task, 0, len(docs))
	for _, doc := range docs {
		t := fromDocument(doc)
		for _, id := range doc.TagIDs {
			if tg, ok := tags[id]; ok {
				t.Tags = append(t.Tags, tg)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *MongoTaskRepository) loadTags(ctx context.Context, docs []TaskDocument) (map[int64]tag.Tag, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, doc := range docs {
		for _, id := range doc.TagIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	tags := make(map[int64]tag.Tag, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}

	cursor, err := r.tags.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, HandleMongoError(err, "tags")
	}

	var tagDocs []TagDocument
	if err = cursor.All(ctx, &tagDocs); err != nil {
		return nil, HandleMongoError(err, "tags")
	}

	for _, d := range tagDocs {
		tags[d.ID] = tag.Tag{
			ID:               d.ID,
			Name:             d.Name,
			CreationTime:     d.CreationTime.UTC(),
			ModificationTime: d.ModificationTime.UTC(),
			Version:          d.Version,
		}
	}
	return tags, nil
}

func toDocument(t *task.Task) TaskDocument {
	doc := TaskDocument{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		CreatorID:        t.CreatorID,
		AssigneeID:       t.AssigneeID,
		CloserID:         t.CloserID,
		TagIDs:           t.TagIDs(),
		CreationTime:     t.CreationTime.UTC(),
		ModificationTime: t.ModificationTime.UTC(),
		Version:          t.Version,
	}
	if t.Resolution != nil {
		res := string(*t.Resolution)
		doc.Resolution = &res
	}
	return doc
}

func fromDocument(doc TaskDocument) *task.Task {
	t := &task.Task{
		ID:               doc.ID,
		Title:            doc.Title,
		Description:      doc.Description,
		Status:           task.Status(doc.Status),
		CreatorID:        doc.CreatorID,
		AssigneeID:       doc.AssigneeID,
		CloserID:         doc.CloserID,
		CreationTime:     doc.CreationTime.UTC(),
		ModificationTime: doc.ModificationTime.UTC(),
		Tags:             []tag.Tag{},
		Version:          doc.Version,
	}
	if doc.Resolution != nil {
		res := task.Resolution(*doc.Resolution)
		t.Resolution = &res
	}
	return t
}
