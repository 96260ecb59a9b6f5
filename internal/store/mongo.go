package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Projects     []string  `bson:"projects"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type projectDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Description   string    `bson:"description"`
	Columns       []string  `bson:"columns"`
	AssignedUsers []string  `bson:"assigned_users"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type columnDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Icon      string    `bson:"icon"`
	ProjectID string    `bson:"project_id"`
	Tasks     []string  `bson:"tasks"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type taskDoc struct {
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	Description   string     `bson:"description"`
	ColumnTitle   string     `bson:"column_title"`
	Label         string     `bson:"label"`
	LabelType     string     `bson:"label_type"`
	ExpireAt      *time.Time `bson:"expire_at,omitempty"`
	AssignedUsers []string   `bson:"assigned_users"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

// MongoStore maps each collection onto a Mongo collection of the same name.
// With transactions enabled WithinTx runs inside a session transaction, which
// needs a replica set; otherwise the callback runs without one.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	inTx         bool
}

func OpenMongo(ctx context.Context, uri, database string, transactions bool) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	store := &MongoStore{client: client, db: client.Database(database), transactions: transactions}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(string(Users)).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	for _, field := range []ArrayField{UserProjects, ProjectColumns, ProjectAssignees, ColumnTasks, TaskAssignees} {
		_, err := s.db.Collection(string(field.Collection)).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: field.Name, Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create %s index: %w", field, err)
		}
	}
	return nil
}

func (s *MongoStore) coll(c Collection) *mongo.Collection {
	return s.db.Collection(string(c))
}

func (s *MongoStore) findOne(ctx context.Context, c Collection, filter any, out any) error {
	err := s.coll(c).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", c, err)
	}
	return nil
}

func (s *MongoStore) insert(ctx context.Context, c Collection, doc any) error {
	if _, err := s.coll(c).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", c, err)
	}
	return nil
}

func (s *MongoStore) set(ctx context.Context, c Collection, id string, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	result, err := s.coll(c).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update %s: %w", c, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func findMany[D any](ctx context.Context, coll *mongo.Collection, ids []string) ([]D, error) {
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": cloneStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	var docs []D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return docs, nil
}

func (d userDoc) model() User {
	return User{ID: d.ID, Email: d.Email, PasswordHash: d.PasswordHash, Projects: cloneStrings(d.Projects), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d projectDoc) model() Project {
	return Project{
		ID: d.ID, Title: d.Title, Description: d.Description,
		Columns: cloneStrings(d.Columns), AssignedUsers: cloneStrings(d.AssignedUsers),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (d columnDoc) model() Column {
	return Column{ID: d.ID, Title: d.Title, Icon: d.Icon, ProjectID: d.ProjectID, Tasks: cloneStrings(d.Tasks), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d taskDoc) model() Task {
	return Task{
		ID: d.ID, Title: d.Title, Description: d.Description, ColumnTitle: d.ColumnTitle,
		Label: d.Label, LabelType: d.LabelType, ExpireAt: d.ExpireAt,
		AssignedUsers: cloneStrings(d.AssignedUsers), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (User, error) {
	var doc userDoc
	if err := s.findOne(ctx, Users, bson.M{"_id": id}, &doc); err != nil {
		return User{}, err
	}
	return doc.model(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var doc userDoc
	if err := s.findOne(ctx, Users, bson.M{"email": strings.ToLower(email)}, &doc); err != nil {
		return User{}, err
	}
	return doc.model(), nil
}

func (s *MongoStore) InsertUser(ctx context.Context, user User) error {
	return s.insert(ctx, Users, userDoc{
		ID: user.ID, Email: strings.ToLower(user.Email), PasswordHash: user.PasswordHash,
		Projects: cloneStrings(user.Projects), CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt,
	})
}

func (s *MongoStore) GetProject(ctx context.Context, id string) (Project, error) {
	var doc projectDoc
	if err := s.findOne(ctx, Projects, bson.M{"_id": id}, &doc); err != nil {
		return Project{}, err
	}
	return doc.model(), nil
}

func (s *MongoStore) ListProjects(ctx context.Context, ids []string) ([]Project, error) {
	docs, err := findMany[projectDoc](ctx, s.coll(Projects), ids)
	if err != nil {
		return nil, err
	}
	items := make([]Project, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.model())
	}
	return orderByIDs(ids, items, func(p Project) string { return p.ID }), nil
}

func (s *MongoStore) InsertProject(ctx context.Context, project Project) error {
	return s.insert(ctx, Projects, projectDoc{
		ID: project.ID, Title: project.Title, Description: project.Description,
		Columns: cloneStrings(project.Columns), AssignedUsers: cloneStrings(project.AssignedUsers),
		CreatedAt: project.CreatedAt, UpdatedAt: project.UpdatedAt,
	})
}

func (s *MongoStore) UpdateProject(ctx context.Context, project Project) error {
	return s.set(ctx, Projects, project.ID, bson.D{
		{Key: "title", Value: project.Title},
		{Key: "description", Value: project.Description},
	})
}

func (s *MongoStore) GetColumn(ctx context.Context, id string) (Column, error) {
	var doc columnDoc
	if err := s.findOne(ctx, Columns, bson.M{"_id": id}, &doc); err != nil {
		return Column{}, err
	}
	return doc.model(), nil
}

func (s *MongoStore) ListColumns(ctx context.Context, ids []string) ([]Column, error) {
	docs, err := findMany[columnDoc](ctx, s.coll(Columns), ids)
	if err != nil {
		return nil, err
	}
	items := make([]Column, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.model())
	}
	return orderByIDs(ids, items, func(c Column) string { return c.ID }), nil
}

func (s *MongoStore) InsertColumn(ctx context.Context, column Column) error {
	return s.insert(ctx, Columns, columnDoc{
		ID: column.ID, Title: column.Title, Icon: column.Icon, ProjectID: column.ProjectID,
		Tasks: cloneStrings(column.Tasks), CreatedAt: column.CreatedAt, UpdatedAt: column.UpdatedAt,
	})
}

func (s *MongoStore) UpdateColumn(ctx context.Context, column Column) error {
	return s.set(ctx, Columns, column.ID, bson.D{
		{Key: "title", Value: column.Title},
		{Key: "icon", Value: column.Icon},
	})
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (Task, error) {
	var doc taskDoc
	if err := s.findOne(ctx, Tasks, bson.M{"_id": id}, &doc); err != nil {
		return Task{}, err
	}
	return doc.model(), nil
}

func (s *MongoStore) ListTasks(ctx context.Context, ids []string) ([]Task, error) {
	docs, err := findMany[taskDoc](ctx, s.coll(Tasks), ids)
	if err != nil {
		return nil, err
	}
	items := make([]Task, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.model())
	}
	return orderByIDs(ids, items, func(t Task) string { return t.ID }), nil
}

func (s *MongoStore) InsertTask(ctx context.Context, task Task) error {
	return s.insert(ctx, Tasks, taskDoc{
		ID: task.ID, Title: task.Title, Description: task.Description, ColumnTitle: task.ColumnTitle,
		Label: task.Label, LabelType: task.LabelType, ExpireAt: task.ExpireAt,
		AssignedUsers: cloneStrings(task.AssignedUsers), CreatedAt: task.CreatedAt, UpdatedAt: task.UpdatedAt,
	})
}

func (s *MongoStore) UpdateTask(ctx context.Context, task Task) error {
	return s.set(ctx, Tasks, task.ID, bson.D{
		{Key: "title", Value: task.Title},
		{Key: "description", Value: task.Description},
		{Key: "column_title", Value: task.ColumnTitle},
		{Key: "label", Value: task.Label},
		{Key: "label_type", Value: task.LabelType},
		{Key: "expire_at", Value: task.ExpireAt},
	})
}

// Push relies on the filter to enforce both set semantics and the cap, so a
// single UpdateOne is the whole check-and-append.
func (s *MongoStore) Push(ctx context.Context, field ArrayField, id, value string, limit int) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: field.Name, Value: bson.M{"$ne": value}},
	}
	if limit > 0 {
		filter = append(filter, bson.E{Key: "$expr", Value: bson.M{
			"$lt": bson.A{bson.M{"$size": "$" + field.Name}, limit},
		}})
	}
	update := bson.M{
		"$push": bson.M{field.Name: value},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.coll(field.Collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("push %s: %w", field, err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	var doc bson.M
	err = s.coll(field.Collection).FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{field.Name: 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", field, err)
	}
	items := bsonStrings(doc[field.Name])
	if containsString(items, value) {
		return false, nil
	}
	if limit > 0 && len(items) >= limit {
		return false, ErrLimitReached
	}
	return false, fmt.Errorf("push %s: no document updated", field)
}

func bsonStrings(raw any) []string {
	arr, ok := raw.(bson.A)
	if !ok {
		return nil
	}
	items := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			items = append(items, s)
		}
	}
	return items
}

func (s *MongoStore) Pull(ctx context.Context, field ArrayField, id, value string) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	result, err := s.coll(field.Collection).UpdateOne(ctx,
		bson.M{"_id": id, field.Name: value},
		bson.M{"$pull": bson.M{field.Name: value}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("pull %s: %w", field, err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}
	count, err := s.coll(field.Collection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", field, err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *MongoStore) PullEverywhere(ctx context.Context, field ArrayField, value string) (int64, error) {
	if err := checkField(field); err != nil {
		return 0, err
	}
	result, err := s.coll(field.Collection).UpdateMany(ctx,
		bson.M{field.Name: value},
		bson.M{"$pull": bson.M{field.Name: value}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("pull %s everywhere: %w", field, err)
	}
	return result.ModifiedCount, nil
}

func (s *MongoStore) Referencing(ctx context.Context, field ArrayField, value string) ([]string, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	return s.ids(ctx, field.Collection, bson.M{field.Name: value})
}

func (s *MongoStore) ids(ctx context.Context, c Collection, filter bson.M) ([]string, error) {
	cursor, err := s.coll(c).Find(ctx, filter,
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", c, err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s ids: %w", c, err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection Collection, id string) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	result, err := s.coll(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) ListIDs(ctx context.Context, collection Collection) ([]string, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return s.ids(ctx, collection, bson.M{})
}

func (s *MongoStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx || !s.transactions {
		return fn(ctx, s)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	tx := &MongoStore{client: s.client, db: s.db, transactions: true, inTx: true}
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, tx)
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
