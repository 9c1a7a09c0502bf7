package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

// CreateProfile inserts user and profile and bumps the forum user counter.
func (dao *Store) CreateProfile(ctx context.Context, user *model.User, profile *model.Profile, forumName string) error {
	return dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			dao.Log.Errorf("[dao] Create(user) err: %v", err)
			return err
		}
		profile.UserID = user.ID
		if err := tx.Omit(clause.Associations).Create(profile).Error; err != nil {
			dao.Log.Errorf("[dao] Create(profile) err: %v", err)
			return err
		}
		db := tx.Model(&model.Forum{}).Where("name = ?", forumName).
			UpdateColumn("total_users", gorm.Expr("total_users + ?", 1))
		if db.Error != nil {
			dao.Log.Errorf("[dao] increment forum total_users err: %v", db.Error)
			return db.Error
		}
		return setGroups(tx, profile, nil)
	})
}

// GetProfileByUser loads a profile with its user, groups and top group.
func (dao *Store) GetProfileByUser(ctx context.Context, userID int64) (*model.Profile, error) {
	profile := &model.Profile{}
	err := dao.db(ctx).Preload("User").Preload("TopGroup").
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("priority DESC") }).
		Where("user_id = ?", userID).First(profile).Error
	if err != nil {
		return nil, notFoundOr(err, "profile")
	}
	return profile, nil
}

// SetGroups replaces the groups of a profile and recomputes its top group.
func (dao *Store) SetGroups(ctx context.Context, profileID int64, groupIDs []int64) (*model.Profile, error) {
	profile := &model.Profile{}
	err := dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", profileID).First(profile).Error; err != nil {
			return notFoundOr(err, "profile")
		}
		if err := tx.Where("profile_id = ?", profileID).Delete(&model.ProfileGroup{}).Error; err != nil {
			return err
		}
		return setGroups(tx, profile, groupIDs)
	})
	if err != nil {
		dao.Log.Errorf("[dao] SetGroups(%d) err: %v", profileID, err)
		return nil, err
	}
	return dao.GetProfileByUser(ctx, profile.UserID)
}

// AddGroups adds groups on top of the ones already held.
func (dao *Store) AddGroups(ctx context.Context, profileID int64, groupIDs []int64) (*model.Profile, error) {
	profile := &model.Profile{}
	err := dao.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", profileID).First(profile).Error; err != nil {
			return notFoundOr(err, "profile")
		}
		held, err := heldGroups(tx, profileID)
		if err != nil {
			return err
		}
		heldMap := make(map[int64]bool, len(held))
		for _, g := range held {
			heldMap[g.ID] = true
		}
		fresh := make([]int64, 0, len(groupIDs))
		for _, id := range groupIDs {
			if !heldMap[id] {
				heldMap[id] = true
				fresh = append(fresh, id)
			}
		}
		return setGroups(tx, profile, fresh)
	})
	if err != nil {
		dao.Log.Errorf("[dao] AddGroups(%d) err: %v", profileID, err)
		return nil, err
	}
	return dao.GetProfileByUser(ctx, profile.UserID)
}

// setGroups links groupIDs to the profile then makes top_group the highest held group,
// or the lowest-priority group of the forum when none is held.
func setGroups(tx *gorm.DB, profile *model.Profile, groupIDs []int64) error {
	if len(groupIDs) > 0 {
		groups := make([]*model.Group, 0, len(groupIDs))
		if err := tx.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
			return err
		}
		if len(groups) != len(groupIDs) {
			return notFoundOr(gorm.ErrRecordNotFound, "group")
		}
		links := make([]*model.ProfileGroup, 0, len(groups))
		for _, g := range groups {
			links = append(links, &model.ProfileGroup{ProfileID: profile.ID, GroupID: g.ID})
		}
		if err := tx.Create(&links).Error; err != nil {
			return err
		}
	}

	held, err := heldGroups(tx, profile.ID)
	if err != nil {
		return err
	}
	var fallback *model.Group
	if len(held) == 0 {
		lowest := make([]*model.Group, 0, 1)
		if err := tx.Order("priority ASC").Limit(1).Find(&lowest).Error; err != nil {
			return err
		}
		if len(lowest) > 0 {
			fallback = lowest[0]
		}
	}

	top := model.PickTopGroup(held, fallback)
	var topID interface{}
	if top != nil {
		topID = top.ID
	}
	return tx.Model(&model.Profile{}).Where("id = ?", profile.ID).Update("top_group_id", topID).Error
}

func (dao *Store) GetGroupsOrdered(ctx context.Context) ([]*model.Group, error) {
	groups := make([]*model.Group, 0)
	err := dao.db(ctx).Order("priority DESC").Find(&groups).Error
	if err != nil {
		dao.Log.Errorf("[dao] GetGroupsOrdered err: %v", err)
	}
	return groups, err
}

// LowestGroup is the group with the smallest priority, nil when none exists.
func (dao *Store) LowestGroup(ctx context.Context) (*model.Group, error) {
	groups := make([]*model.Group, 0, 1)
	if err := dao.db(ctx).Order("priority ASC").Limit(1).Find(&groups).Error; err != nil {
		dao.Log.Errorf("[dao] LowestGroup err: %v", err)
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0], nil
}

type GroupWithMembers struct {
	model.Group `gorm:"embedded"`
	Members     int64 `json:"members"`
}

// GroupsWithMembers lists visible groups by descending priority with their member counts.
func (dao *Store) GroupsWithMembers(ctx context.Context) ([]*GroupWithMembers, error) {
	rows := make([]*GroupWithMembers, 0)
	err := dao.db(ctx).Table("forum_groups").
		Select("forum_groups.*, COUNT(pg.profile_id) AS members").
		Joins("LEFT JOIN profile_groups pg ON pg.group_id = forum_groups.id").
		Where("forum_groups.is_hidden = ?", false).
		Group("forum_groups.id").
		Order("forum_groups.priority DESC").
		Scan(&rows).Error
	if err != nil {
		dao.Log.Errorf("[dao] GroupsWithMembers err: %v", err)
	}
	return rows, err
}

func (dao *Store) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	group := &model.Group{}
	if err := dao.db(ctx).Where("id = ?", id).First(group).Error; err != nil {
		return nil, notFoundOr(err, "group")
	}
	return group, nil
}

const staffHolders = "SELECT pg.profile_id FROM profile_groups pg JOIN forum_groups g ON g.id = pg.group_id WHERE g.is_staff_group = ?"

// StaffFilter keeps the members holding a staff group. It plugs into Members.
func StaffFilter(db *gorm.DB) *gorm.DB {
	return db.Where("profiles.id IN ("+staffHolders+")", true)
}

// HolderFilter keeps the members holding groupID, staff excluded.
func HolderFilter(groupID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("profiles.id IN (SELECT profile_id FROM profile_groups WHERE group_id = ?)", groupID).
			Where("profiles.id NOT IN ("+staffHolders+")", true)
	}
}

// PosterFilter keeps the members who had written at least minMessages posts at asOf, staff excluded.
func PosterFilter(asOf time.Time, minMessages int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(SELECT COUNT(*) FROM posts p WHERE p.author_id = profiles.user_id AND p.created_time <= ?) >= ?", asOf.UTC(), minMessages).
			Where("profiles.id NOT IN ("+staffHolders+")", true)
	}
}

func (dao *Store) CountUsers(ctx context.Context, asOf time.Time) (int64, error) {
	var total int64
	err := dao.db(ctx).Model(&model.User{}).Where("date_joined <= ?", asOf.UTC()).Count(&total).Error
	if err != nil {
		dao.Log.Errorf("[dao] CountUsers err: %v", err)
	}
	return total, err
}

// LatestUser is the last member who joined at or before asOf.
func (dao *Store) LatestUser(ctx context.Context, asOf time.Time) (*model.User, error) {
	users := make([]*model.User, 0, 1)
	if err := dao.db(ctx).Where("date_joined <= ?", asOf.UTC()).
		Order("date_joined DESC, id DESC").Limit(1).Find(&users).Error; err != nil {
		dao.Log.Errorf("[dao] LatestUser err: %v", err)
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// MemberRow is a profile with the message count it had at the listing instant.
type MemberRow struct {
	model.Profile `gorm:"embedded"`
	Username      string    `json:"username"`
	DateJoined    time.Time `json:"dateJoined"`
	PastMessages  int64     `json:"pastMessages"`
}

// MemberSort columns accepted by Members.
var MemberSort = map[string]string{
	"joined":    "users.id",
	"lastvisit": "profiles.last_login",
	"username":  "users.username",
	"posts":     "past_messages",
	"email":     "users.id",
	"website":   "users.id",
}

// MemberFilter restricts some listing modes to part of the members.
var MemberFilter = map[string]func(db *gorm.DB) *gorm.DB{
	"email": func(db *gorm.DB) *gorm.DB {
		return db.Where("profiles.email_is_public = ?", true)
	},
	"website": func(db *gorm.DB) *gorm.DB {
		return db.Where("profiles.website <> ?", "")
	},
}

// Members pages through members who joined at or before asOf. orderBy must come from MemberSort
// and filter, when set, from MemberFilter.
func (dao *Store) Members(ctx context.Context, asOf time.Time, filter func(db *gorm.DB) *gorm.DB, orderBy string, desc bool, offset, limit int) ([]*MemberRow, int64, error) {
	var total int64
	rows := make([]*MemberRow, 0)

	base := func() *gorm.DB {
		db := dao.db(ctx).Table("profiles").
			Joins("JOIN users ON users.id = profiles.user_id").
			Where("users.date_joined <= ? AND profiles.is_hidden = ?", asOf.UTC(), false)
		if filter != nil {
			db = filter(db)
		}
		return db
	}
	if err := base().Count(&total).Error; err != nil {
		dao.Log.Errorf("[dao] Members Count err: %v", err)
		return rows, total, err
	}

	direction := " ASC"
	if desc {
		direction = " DESC"
	}
	err := base().
		Select("profiles.*, users.username AS username, users.date_joined AS date_joined, "+
			"(SELECT COUNT(*) FROM posts p WHERE p.author_id = profiles.user_id AND p.created_time <= ?) AS past_messages", asOf.UTC()).
		Order(orderBy + direction + ", users.id ASC").
		Offset(offset).Limit(limit).
		Scan(&rows).Error
	if err != nil {
		dao.Log.Errorf("[dao] Members Find err: %v", err)
	}
	return rows, total, err
}

// BirthdayCandidates lists the profiles with a known birthdate whose user joined at or before asOf.
func (dao *Store) BirthdayCandidates(ctx context.Context, asOf time.Time) ([]*model.Profile, error) {
	profiles := make([]*model.Profile, 0)
	err := dao.db(ctx).Preload("User").
		Joins("JOIN users ON users.id = profiles.user_id").
		Where("users.date_joined <= ? AND profiles.birthdate > ?", asOf.UTC(), time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC)).
		Find(&profiles).Error
	if err != nil {
		dao.Log.Errorf("[dao] BirthdayCandidates err: %v", err)
	}
	return profiles, err
}

// MarkRead upserts the last read time of a topic for a user.
func (dao *Store) MarkRead(ctx context.Context, userID, topicID int64, at time.Time) error {
	status := &model.TopicReadStatus{UserID: userID, TopicID: topicID, LastRead: at.UTC()}
	err := dao.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read"}),
	}).Create(status).Error
	if err != nil {
		dao.Log.Errorf("[dao] MarkRead(%d, %d) err: %v", userID, topicID, err)
	}
	return err
}

// MarkReadMany upserts the last read time of several topics for a user in one statement.
func (dao *Store) MarkReadMany(ctx context.Context, userID int64, topicIDs []int64, at time.Time) error {
	if len(topicIDs) == 0 {
		return nil
	}
	statuses := make([]*model.TopicReadStatus, 0, len(topicIDs))
	for _, id := range topicIDs {
		statuses = append(statuses, &model.TopicReadStatus{UserID: userID, TopicID: id, LastRead: at.UTC()})
	}
	err := dao.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read"}),
	}).Create(&statuses).Error
	if err != nil {
		dao.Log.Errorf("[dao] MarkReadMany(%d, %d topics) err: %v", userID, len(topicIDs), err)
	}
	return err
}

func (dao *Store) ReadStatuses(ctx context.Context, userID int64, topicIDs []int64) (map[int64]time.Time, error) {
	res := make(map[int64]time.Time, len(topicIDs))
	if len(topicIDs) == 0 {
		return res, nil
	}
	statuses := make([]*model.TopicReadStatus, 0, len(topicIDs))
	if err := dao.db(ctx).Where("user_id = ? AND topic_id IN ?", userID, topicIDs).Find(&statuses).Error; err != nil {
		dao.Log.Errorf("[dao] ReadStatuses err: %v", err)
		return res, err
	}
	for _, s := range statuses {
		res[s.TopicID] = s.LastRead
	}
	return res, nil
}

func (dao *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	if err := dao.db(ctx).Where("id = ?", id).First(user).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// EnsureForum creates the forum row named name if it is missing.
func (dao *Store) EnsureForum(ctx context.Context, name string) (*model.Forum, error) {
	forum := &model.Forum{}
	err := dao.db(ctx).Where(model.Forum{Name: name}).
		Attrs(model.Forum{OnlineRecordDate: time.Now().UTC()}).FirstOrCreate(forum).Error
	if err != nil {
		dao.Log.Errorf("[dao] EnsureForum(%s) err: %v", name, err)
	}
	return forum, err
}

// GetForum loads the forum row named name, nil when it does not exist.
func (dao *Store) GetForum(ctx context.Context, name string) (*model.Forum, error) {
	forums := make([]*model.Forum, 0, 1)
	if err := dao.db(ctx).Where("name = ?", name).Limit(1).Find(&forums).Error; err != nil {
		dao.Log.Errorf("[dao] GetForum(%s) err: %v", name, err)
		return nil, err
	}
	if len(forums) == 0 {
		return nil, nil
	}
	return forums[0], nil
}
