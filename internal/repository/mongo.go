package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campuslink/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// maxVoteAttempts bounds the optimistic read-modify-write loop of ApplyVote.
const maxVoteAttempts = 8

// MongoStore implements Store on MongoDB. Posts and comments keep their vote
// sets as arrays inside the document together with a version counter that
// every vote write is conditioned on.
type MongoStore struct {
	client   *mongo.Client
	posts    *mongo.Collection
	comments *mongo.Collection
	users    *mongo.Collection
	logs     *mongo.Collection
	colleges *mongo.Collection
	courses  *mongo.Collection
	events   *mongo.Collection
	groups   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
		users:    db.Collection("users"),
		logs:     db.Collection("karma_logs"),
		colleges: db.Collection("colleges"),
		courses:  db.Collection("courses"),
		events:   db.Collection("events"),
		groups:   db.Collection("study_groups"),
	}
}

// ================================
// Documents
// ================================

type postDoc struct {
	ID           int64     `bson:"_id"`
	AuthorID     int64     `bson:"author_id"`
	CollegeID    int64     `bson:"college_id"`
	CourseID     *int64    `bson:"course_id,omitempty"`
	Title        string    `bson:"title"`
	URL          string    `bson:"url,omitempty"`
	Content      string    `bson:"content"`
	Status       string    `bson:"status"`
	Upvoters     []int64   `bson:"upvoters"`
	Downvoters   []int64   `bson:"downvoters"`
	Score        int       `bson:"score"`
	CommentCount int       `bson:"comment_count"`
	ViewCount    int       `bson:"view_count"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
	LastActiveAt time.Time `bson:"last_active_at"`
	Version      int64     `bson:"version"`
}

func newPostDoc(p *models.Post) postDoc {
	return postDoc{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		CollegeID:    p.CollegeID,
		CourseID:     p.CourseID,
		Title:        p.Title,
		URL:          p.URL,
		Content:      p.Content,
		Status:       string(p.Status),
		Upvoters:     p.Upvoters.IDs(),
		Downvoters:   p.Downvoters.IDs(),
		Score:        p.Score,
		CommentCount: p.CommentCount,
		ViewCount:    p.ViewCount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		LastActiveAt: p.LastActiveAt,
	}
}

func (d postDoc) model() models.Post {
	return models.Post{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		CollegeID: d.CollegeID,
		CourseID:  d.CourseID,
		Title:     d.Title,
		URL:       d.URL,
		Content:   d.Content,
		Status:    models.PostStatus(d.Status),
		Votable: models.Votable{
			Upvoters:   models.NewVoteSet(d.Upvoters...),
			Downvoters: models.NewVoteSet(d.Downvoters...),
			Score:      d.Score,
		},
		CommentCount: d.CommentCount,
		ViewCount:    d.ViewCount,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastActiveAt: d.LastActiveAt,
	}
}

type commentDoc struct {
	ID         int64      `bson:"_id"`
	PostID     int64      `bson:"post_id"`
	AuthorID   int64      `bson:"author_id"`
	ParentID   *int64     `bson:"parent_id"`
	Content    string     `bson:"content"`
	Status     string     `bson:"status"`
	Upvoters   []int64    `bson:"upvoters"`
	Downvoters []int64    `bson:"downvoters"`
	Score      int        `bson:"score"`
	EditedAt   *time.Time `bson:"edited_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
	Version    int64      `bson:"version"`
}

func newCommentDoc(c *models.Comment) commentDoc {
	return commentDoc{
		ID:         c.ID,
		PostID:     c.PostID,
		AuthorID:   c.AuthorID,
		ParentID:   c.ParentID,
		Content:    c.Content,
		Status:     string(c.Status),
		Upvoters:   c.Upvoters.IDs(),
		Downvoters: c.Downvoters.IDs(),
		Score:      c.Score,
		EditedAt:   c.EditedAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (d commentDoc) model() models.Comment {
	return models.Comment{
		ID:       d.ID,
		PostID:   d.PostID,
		AuthorID: d.AuthorID,
		ParentID: d.ParentID,
		Content:  d.Content,
		Status:   models.CommentStatus(d.Status),
		Votable: models.Votable{
			Upvoters:   models.NewVoteSet(d.Upvoters...),
			Downvoters: models.NewVoteSet(d.Downvoters...),
			Score:      d.Score,
		},
		EditedAt:  d.EditedAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// voteDoc is the projection ApplyVote reads.
type voteDoc struct {
	Upvoters   []int64 `bson:"upvoters"`
	Downvoters []int64 `bson:"downvoters"`
	Version    int64   `bson:"version"`
}

func mongoErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) collectionFor(target models.TargetType) (*mongo.Collection, error) {
	switch target {
	case models.TargetPost:
		return s.posts, nil
	case models.TargetComment:
		return s.comments, nil
	}
	return nil, fmt.Errorf("unknown vote target %q", target)
}

// ================================
// Votes
// ================================

func (s *MongoStore) ApplyVote(ctx context.Context, target models.TargetType, targetID, userID int64, dir models.Direction) (*models.VoteResult, error) {
	col, err := s.collectionFor(target)
	if err != nil {
		return nil, err
	}

	projection := bson.M{"upvoters": 1, "downvoters": 1, "version": 1}
	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		var doc voteDoc
		err := col.FindOne(ctx, bson.M{"_id": targetID}, options.FindOne().SetProjection(projection)).Decode(&doc)
		if err != nil {
			return nil, mongoErr(err)
		}

		v := models.Votable{
			Upvoters:   models.NewVoteSet(doc.Upvoters...),
			Downvoters: models.NewVoteSet(doc.Downvoters...),
		}
		v.RecomputeScore()
		previous := v.StateOf(userID)
		state := v.ApplyVote(userID, dir)

		// 只有版本号未变时才写入，否则重读重试
		res, err := col.UpdateOne(ctx,
			bson.M{"_id": targetID, "version": doc.Version},
			bson.M{
				"$set": bson.M{
					"upvoters":   v.Upvoters.IDs(),
					"downvoters": v.Downvoters.IDs(),
					"score":      v.Score,
					"updated_at": time.Now(),
				},
				"$inc": bson.M{"version": 1},
			})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return &models.VoteResult{
				Target:    target,
				TargetID:  targetID,
				Score:     v.Score,
				Upvotes:   v.Upvoters.Len(),
				Downvotes: v.Downvoters.Len(),
				State:     state,
				Previous:  previous,
			}, nil
		}
	}
	return nil, ErrVoteContention
}

// ================================
// Posts
// ================================

func (s *MongoStore) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := s.posts.InsertOne(ctx, newPostDoc(post))
	return mongoErr(err)
}

func (s *MongoStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	post := doc.model()
	return &post, nil
}

func (s *MongoStore) findPosts(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Post, error) {
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.model())
	}
	return posts, nil
}

func (s *MongoStore) ListPosts(ctx context.Context, q models.RankQuery, order PostOrder) ([]models.Post, error) {
	filter := bson.M{"status": string(models.PostActive)}
	if q.Scope.CollegeID != 0 {
		filter["college_id"] = q.Scope.CollegeID
	}
	if q.Scope.CourseID != 0 {
		filter["course_id"] = q.Scope.CourseID
	}
	if !q.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": q.Since}
	}

	sort := bson.D{{Key: "score", Value: -1}, {Key: "comment_count", Value: -1}, {Key: "view_count", Value: -1}, {Key: "_id", Value: -1}}
	if order == OrderNewest {
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
	opts := options.Find().SetSort(sort).SetLimit(int64(q.Limit))
	return s.findPosts(ctx, filter, opts)
}

func (s *MongoStore) PostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	return s.findPosts(ctx, bson.M{"author_id": authorID}, options.Find())
}

func (s *MongoStore) RecordView(ctx context.Context, id int64, at time.Time) error {
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"view_count": 1},
		"$set": bson.M{"last_active_at": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AdjustCommentCount(ctx context.Context, postID int64, delta int, at time.Time) error {
	set := bson.M{
		"comment_count": bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$comment_count", delta}}}},
	}
	if delta > 0 {
		set["last_active_at"] = at
	}
	// 用更新管道保证计数不小于 0
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": postID}, mongo.Pipeline{
		{{Key: "$set", Value: set}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecountComments 在 Mongo 上不是单条原子操作，调用方需按帖子串行化。
func (s *MongoStore) RecountComments(ctx context.Context, postID int64) (int, int, error) {
	n, err := s.comments.CountDocuments(ctx, bson.M{"post_id": postID, "status": string(models.CommentActive)})
	if err != nil {
		return 0, 0, err
	}

	var before struct {
		CommentCount int `bson:"comment_count"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"comment_count": 1})
	err = s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": postID},
		bson.M{"$set": bson.M{"comment_count": int(n)}},
		opts,
	).Decode(&before)
	if err != nil {
		return 0, 0, mongoErr(err)
	}
	return before.CommentCount, int(n), nil
}

func (s *MongoStore) RecentlyActivePostIDs(ctx context.Context, since time.Time) ([]int64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.posts.Find(ctx, bson.M{"last_active_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *MongoStore) countPostsBy(ctx context.Context, field string, match bson.M, limit int) ([]models.ActivityCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "post_count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "post_count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cur, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID        int64 `bson:"_id"`
		PostCount int   `bson:"post_count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]models.ActivityCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ActivityCount{ID: r.ID, PostCount: r.PostCount})
	}
	return out, nil
}

func (s *MongoStore) CountPostsByCourse(ctx context.Context, collegeID int64, since time.Time, limit int) ([]models.ActivityCount, error) {
	match := bson.M{
		"status":     string(models.PostActive),
		"course_id":  bson.M{"$ne": nil},
		"created_at": bson.M{"$gte": since},
	}
	if collegeID != 0 {
		match["college_id"] = collegeID
	}
	return s.countPostsBy(ctx, "course_id", match, limit)
}

func (s *MongoStore) CountPostsByCollege(ctx context.Context, since time.Time, limit int) ([]models.ActivityCount, error) {
	match := bson.M{
		"status":     string(models.PostActive),
		"created_at": bson.M{"$gte": since},
	}
	return s.countPostsBy(ctx, "college_id", match, limit)
}

// ================================
// Comments
// ================================

func (s *MongoStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	_, err := s.comments.InsertOne(ctx, newCommentDoc(comment))
	return mongoErr(err)
}

func (s *MongoStore) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	var doc commentDoc
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	comment := doc.model()
	return &comment, nil
}

func (s *MongoStore) findComments(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Comment, error) {
	cur, err := s.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, d.model())
	}
	return comments, nil
}

func (s *MongoStore) ListActiveComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return s.findComments(ctx, bson.M{"post_id": postID, "status": string(models.CommentActive)}, opts)
}

func (s *MongoStore) CommentsByAuthor(ctx context.Context, authorID int64) ([]models.Comment, error) {
	return s.findComments(ctx, bson.M{"author_id": authorID}, options.Find())
}

func (s *MongoStore) UpdateCommentStatus(ctx context.Context, id int64, status models.CommentStatus, at time.Time) (models.CommentStatus, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"status": 1})
	var before struct {
		Status string `bson:"status"`
	}
	err := s.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at}},
		opts,
	).Decode(&before)
	if err != nil {
		return "", mongoErr(err)
	}
	return models.CommentStatus(before.Status), nil
}

// ================================
// Users
// ================================

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, user)
	return mongoErr(err)
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

// SaveKarma swaps the karma value and appends a log entry. The two writes
// are not transactional; a lost log entry only loses history.
func (s *MongoStore) SaveKarma(ctx context.Context, userID int64, karma int) (int, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"karma": 1})
	var before struct {
		Karma int `bson:"karma"`
	}
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"karma": karma, "updated_at": time.Now()}},
		opts,
	).Decode(&before)
	if err != nil {
		return 0, mongoErr(err)
	}

	log := models.KarmaLog{UserID: userID, Karma: karma, Delta: karma - before.Karma, CreatedAt: time.Now()}
	if _, err := s.logs.InsertOne(ctx, log); err != nil {
		return before.Karma, err
	}
	return before.Karma, nil
}

// ================================
// Catalog
// ================================

func (s *MongoStore) GetCollege(ctx context.Context, id int64) (*models.College, error) {
	var college models.College
	if err := s.colleges.FindOne(ctx, bson.M{"_id": id}).Decode(&college); err != nil {
		return nil, mongoErr(err)
	}
	return &college, nil
}

func (s *MongoStore) CollegesByIDs(ctx context.Context, ids []int64) ([]models.College, error) {
	colleges := []models.College{}
	if len(ids) == 0 {
		return colleges, nil
	}
	cur, err := s.colleges.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	err = cur.All(ctx, &colleges)
	return colleges, err
}

func (s *MongoStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	var course models.Course
	if err := s.courses.FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		return nil, mongoErr(err)
	}
	return &course, nil
}

func (s *MongoStore) CoursesByIDs(ctx context.Context, ids []int64) ([]models.Course, error) {
	courses := []models.Course{}
	if len(ids) == 0 {
		return courses, nil
	}
	cur, err := s.courses.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	err = cur.All(ctx, &courses)
	return courses, err
}

// SeedCollege inserts the college unless one with the same slug exists.
func (s *MongoStore) SeedCollege(ctx context.Context, college *models.College) error {
	_, err := s.colleges.UpdateOne(ctx,
		bson.M{"slug": college.Slug},
		bson.M{"$setOnInsert": college},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// ================================
// Indexes
// ================================

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("status_createdAt")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "score", Value: -1}, {Key: "comment_count", Value: -1}, {Key: "view_count", Value: -1}}, Options: options.Index().SetName("status_rank")},
		{Keys: bson.D{{Key: "college_id", Value: 1}}, Options: options.Index().SetName("collegeId")},
		{Keys: bson.D{{Key: "course_id", Value: 1}}, Options: options.Index().SetName("courseId")},
		{Keys: bson.D{{Key: "author_id", Value: 1}}, Options: options.Index().SetName("authorId")},
		{Keys: bson.D{{Key: "last_active_at", Value: -1}}, Options: options.Index().SetName("lastActiveAt")},
	})
	if err != nil {
		return err
	}

	_, err = s.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("postId_status")},
		{Keys: bson.D{{Key: "author_id", Value: 1}}, Options: options.Index().SetName("authorId")},
	})
	if err != nil {
		return err
	}

	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
	})
	if err != nil {
		return err
	}

	_, err = s.colleges.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_slug")},
	})
	if err != nil {
		return err
	}

	_, err = s.courses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "college_id", Value: 1}}, Options: options.Index().SetName("collegeId")},
	})
	if err != nil {
		return err
	}

	_, err = s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "college_id", Value: 1}, {Key: "start_time", Value: 1}}, Options: options.Index().SetName("collegeId_startTime")},
		{Keys: bson.D{{Key: "attendees.user_id", Value: 1}}, Options: options.Index().SetName("attendeeUserId")},
	})
	if err != nil {
		return err
	}

	_, err = s.groups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "college_id", Value: 1}}, Options: options.Index().SetName("collegeId")},
		{Keys: bson.D{{Key: "members.user_id", Value: 1}}, Options: options.Index().SetName("memberUserId")},
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
