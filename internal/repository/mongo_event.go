package repository

import (
	"context"
	"errors"
	"time"

	"campuslink/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Events embed their attendees and interested users; study groups embed
// their members. Every membership change is one conditional update on the
// owning document, so the count and the array never drift apart.

type attendeeDoc struct {
	UserID       int64     `bson:"user_id"`
	Status       string    `bson:"status"`
	RegisteredAt time.Time `bson:"registered_at"`
}

type eventDoc struct {
	ID                   int64         `bson:"_id"`
	Title                string        `bson:"title"`
	Description          string        `bson:"description"`
	CollegeID            int64         `bson:"college_id"`
	CourseID             *int64        `bson:"course_id,omitempty"`
	StudyGroupID         *int64        `bson:"study_group_id,omitempty"`
	OrganizerID          int64         `bson:"organizer_id"`
	StartTime            time.Time     `bson:"start_time"`
	EndTime              time.Time     `bson:"end_time"`
	Location             string        `bson:"location"`
	IsVirtual            bool          `bson:"is_virtual"`
	EventType            string        `bson:"event_type"`
	RegistrationRequired bool          `bson:"registration_required"`
	RegistrationDeadline *time.Time    `bson:"registration_deadline,omitempty"`
	MaxAttendees         int           `bson:"max_attendees"`
	Attendees            []attendeeDoc `bson:"attendees"`
	AttendeeCount        int           `bson:"attendee_count"`
	Interested           []int64       `bson:"interested"`
	InterestedCount      int           `bson:"interested_count"`
	Visibility           string        `bson:"visibility"`
	Status               string        `bson:"status"`
	CreatedAt            time.Time     `bson:"created_at"`
	UpdatedAt            time.Time     `bson:"updated_at"`
}

func newEventDoc(e *models.Event) eventDoc {
	return eventDoc{
		ID:                   e.ID,
		Title:                e.Title,
		Description:          e.Description,
		CollegeID:            e.CollegeID,
		CourseID:             e.CourseID,
		StudyGroupID:         e.StudyGroupID,
		OrganizerID:          e.OrganizerID,
		StartTime:            e.StartTime,
		EndTime:              e.EndTime,
		Location:             e.Location,
		IsVirtual:            e.IsVirtual,
		EventType:            string(e.EventType),
		RegistrationRequired: e.RegistrationRequired,
		RegistrationDeadline: e.RegistrationDeadline,
		MaxAttendees:         e.MaxAttendees,
		Attendees:            []attendeeDoc{},
		Interested:           []int64{},
		Visibility:           string(e.Visibility),
		Status:               string(e.Status),
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

func (d eventDoc) model() models.Event {
	return models.Event{
		ID:                   d.ID,
		Title:                d.Title,
		Description:          d.Description,
		CollegeID:            d.CollegeID,
		CourseID:             d.CourseID,
		StudyGroupID:         d.StudyGroupID,
		OrganizerID:          d.OrganizerID,
		StartTime:            d.StartTime,
		EndTime:              d.EndTime,
		Location:             d.Location,
		IsVirtual:            d.IsVirtual,
		EventType:            models.EventType(d.EventType),
		RegistrationRequired: d.RegistrationRequired,
		RegistrationDeadline: d.RegistrationDeadline,
		MaxAttendees:         d.MaxAttendees,
		AttendeeCount:        d.AttendeeCount,
		InterestedCount:      d.InterestedCount,
		Visibility:           models.EventVisibility(d.Visibility),
		Status:               models.EventStatus(d.Status),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

type memberDoc struct {
	UserID   int64     `bson:"user_id"`
	Role     string    `bson:"role"`
	JoinedAt time.Time `bson:"joined_at"`
}

type groupDoc struct {
	ID           int64       `bson:"_id"`
	Name         string      `bson:"name"`
	Description  string      `bson:"description"`
	CollegeID    int64       `bson:"college_id"`
	CourseID     *int64      `bson:"course_id,omitempty"`
	CreatorID    int64       `bson:"creator_id"`
	Members      []memberDoc `bson:"members"`
	MemberCount  int         `bson:"member_count"`
	MemberLimit  int         `bson:"member_limit"`
	Status       string      `bson:"status"`
	CreatedAt    time.Time   `bson:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at"`
	LastActiveAt time.Time   `bson:"last_active_at"`
}

func newGroupDoc(g *models.StudyGroup) groupDoc {
	members := make([]memberDoc, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, memberDoc{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt})
	}
	return groupDoc{
		ID:           g.ID,
		Name:         g.Name,
		Description:  g.Description,
		CollegeID:    g.CollegeID,
		CourseID:     g.CourseID,
		CreatorID:    g.CreatorID,
		Members:      members,
		MemberCount:  len(members),
		MemberLimit:  g.MemberLimit,
		Status:       string(g.Status),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		LastActiveAt: g.LastActiveAt,
	}
}

func (d groupDoc) model() models.StudyGroup {
	members := make([]models.GroupMember, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, models.GroupMember{GroupID: d.ID, UserID: m.UserID, Role: models.GroupRole(m.Role), JoinedAt: m.JoinedAt})
	}
	return models.StudyGroup{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		CollegeID:    d.CollegeID,
		CourseID:     d.CourseID,
		CreatorID:    d.CreatorID,
		MemberCount:  d.MemberCount,
		MemberLimit:  d.MemberLimit,
		Status:       models.GroupStatus(d.Status),
		Members:      members,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastActiveAt: d.LastActiveAt,
	}
}

// ================================
// Events
// ================================

func (s *MongoStore) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := s.events.InsertOne(ctx, newEventDoc(event))
	return mongoErr(err)
}

func (s *MongoStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var doc eventDoc
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	event := doc.model()
	return &event, nil
}

func (s *MongoStore) UpcomingEvents(ctx context.Context, collegeID int64, now time.Time, limit int) ([]models.Event, error) {
	filter := bson.M{
		"college_id": collegeID,
		"start_time": bson.M{"$gte": now},
		"status":     bson.M{"$nin": bson.A{string(models.EventCanceled), string(models.EventCompleted)}},
		"visibility": bson.M{"$in": bson.A{string(models.VisibilityPublic), string(models.VisibilityCollege)}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"attendees": 0, "interested": 0})
	cur, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.model())
	}
	return events, nil
}

// activeAttendee matches an attendee entry of userID that is not canceled.
func activeAttendee(userID int64) bson.M {
	return bson.M{"user_id": userID, "status": bson.M{"$ne": string(models.AttendeeCanceled)}}
}

func (s *MongoStore) RegisterAttendee(ctx context.Context, eventID, userID int64, capacity int, at time.Time) (*models.Event, error) {
	filter := bson.M{
		"_id":       eventID,
		"attendees": bson.M{"$not": bson.M{"$elemMatch": activeAttendee(userID)}},
	}
	if capacity > 0 {
		filter["attendee_count"] = bson.M{"$lt": capacity}
	}

	// 去掉该用户已取消的旧记录，再追加新的报名
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"attendees": bson.M{"$concatArrays": bson.A{
			bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}},
				"as":    "a",
				"cond":  bson.M{"$ne": bson.A{"$$a.user_id", userID}},
			}},
			bson.A{bson.M{"user_id": userID, "status": string(models.AttendeeRegistered), "registered_at": at}},
		}},
		"attendee_count": bson.M{"$add": bson.A{"$attendee_count", 1}},
		"updated_at":     at,
	}}}}

	var doc eventDoc
	err := s.events.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.registrationConflict(ctx, eventID, userID)
	}
	if err != nil {
		return nil, mongoErr(err)
	}
	event := doc.model()
	return &event, nil
}

// registrationConflict explains why a registration update matched nothing.
func (s *MongoStore) registrationConflict(ctx context.Context, eventID, userID int64) error {
	n, err := s.events.CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	n, err = s.events.CountDocuments(ctx, bson.M{"_id": eventID, "attendees": bson.M{"$elemMatch": activeAttendee(userID)}})
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicate
	}
	return ErrCapacity
}

func (s *MongoStore) CancelRegistration(ctx context.Context, eventID, userID int64) (*models.Event, error) {
	filter := bson.M{
		"_id":       eventID,
		"attendees": bson.M{"$elemMatch": bson.M{"user_id": userID, "status": string(models.AttendeeRegistered)}},
	}
	update := bson.M{
		"$set": bson.M{"attendees.$.status": string(models.AttendeeCanceled)},
		"$inc": bson.M{"attendee_count": -1},
	}

	var doc eventDoc
	err := s.events.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mongoErr(err)
	}
	event := doc.model()
	return &event, nil
}

func (s *MongoStore) ToggleInterested(ctx context.Context, eventID, userID int64, at time.Time) (*models.InterestResult, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"interested_count": 1})

	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		var doc struct {
			InterestedCount int `bson:"interested_count"`
		}

		err := s.events.FindOneAndUpdate(ctx,
			bson.M{"_id": eventID, "interested": userID},
			bson.M{"$pull": bson.M{"interested": userID}, "$inc": bson.M{"interested_count": -1}, "$set": bson.M{"updated_at": at}},
			opts,
		).Decode(&doc)
		if err == nil {
			return &models.InterestResult{EventID: eventID, Interested: false, InterestedCount: doc.InterestedCount}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		err = s.events.FindOneAndUpdate(ctx,
			bson.M{"_id": eventID, "interested": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"interested": userID}, "$inc": bson.M{"interested_count": 1}, "$set": bson.M{"updated_at": at}},
			opts,
		).Decode(&doc)
		if err == nil {
			return &models.InterestResult{EventID: eventID, Interested: true, InterestedCount: doc.InterestedCount}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// 两次都没匹配：活动不存在，或者并发切换了状态
		n, err := s.events.CountDocuments(ctx, bson.M{"_id": eventID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
	}
	return nil, ErrVoteContention
}

// ================================
// Study groups
// ================================

func (s *MongoStore) CreateStudyGroup(ctx context.Context, group *models.StudyGroup) error {
	_, err := s.groups.InsertOne(ctx, newGroupDoc(group))
	return mongoErr(err)
}

func (s *MongoStore) GetStudyGroup(ctx context.Context, id int64) (*models.StudyGroup, error) {
	var doc groupDoc
	if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	group := doc.model()
	return &group, nil
}

func (s *MongoStore) AddMember(ctx context.Context, groupID, userID int64, role models.GroupRole, at time.Time) (bool, error) {
	res, err := s.groups.UpdateOne(ctx,
		bson.M{
			"_id":             groupID,
			"members.user_id": bson.M{"$ne": userID},
			"$expr":           bson.M{"$lt": bson.A{"$member_count", "$member_limit"}},
		},
		bson.M{
			"$push": bson.M{"members": memberDoc{UserID: userID, Role: string(role), JoinedAt: at}},
			"$inc":  bson.M{"member_count": 1},
			"$set":  bson.M{"last_active_at": at, "updated_at": at},
		})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	member, err := s.isMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	if member {
		return false, nil
	}
	return false, ErrCapacity
}

// isMember returns ErrNotFound when the group does not exist.
func (s *MongoStore) isMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var doc struct {
		Members []memberDoc `bson:"members"`
	}
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID},
		options.FindOne().SetProjection(bson.M{"members": bson.M{"$elemMatch": bson.M{"user_id": userID}}}),
	).Decode(&doc)
	if err != nil {
		return false, mongoErr(err)
	}
	return len(doc.Members) > 0, nil
}

func (s *MongoStore) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	res, err := s.groups.UpdateOne(ctx,
		bson.M{"_id": groupID, "members.user_id": userID},
		bson.M{
			"$pull": bson.M{"members": bson.M{"user_id": userID}},
			"$inc":  bson.M{"member_count": -1},
		})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.isMember(ctx, groupID, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *MongoStore) UpdateMemberRole(ctx context.Context, groupID, userID int64, role models.GroupRole) error {
	res, err := s.groups.UpdateOne(ctx,
		bson.M{"_id": groupID, "members.user_id": userID},
		bson.M{"$set": bson.M{"members.$.role": string(role)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
