package model

import (
	"time"

	"gorm.io/datatypes"
)

var Tables = []interface{}{
	&User{},
	&Group{},
	&Profile{},
	&Category{},
	&Topic{},
	&Post{},
	&Forum{},
	&Poll{},
	&PollOption{},
	&PollOptionVoter{},
	&TopicReadStatus{},
}

// JoinTables are created by AutoMigrate through the many2many tags.
var JoinTables = []string{
	"profile_groups",
	"category_index_topics",
	"forum_announcement_topics",
}

type User struct {
	ID         int64     `json:"id" gorm:"primarykey"`
	Username   string    `json:"username" gorm:"size:150;not null;uniqueIndex"`
	Email      string    `json:"-" gorm:"size:254;not null"`
	DateJoined time.Time `json:"dateJoined" gorm:"not null;index"`
	IsStaff    bool      `json:"isStaff" gorm:"not null"`
	IsActive   bool      `json:"isActive" gorm:"not null"`
}

func (*User) Description() string {
	return "forum accounts"
}

type Group struct {
	ID              int64     `json:"id" gorm:"primarykey"`
	Name            string    `json:"name" gorm:"size:191;not null;uniqueIndex"`
	Priority        int64     `json:"priority" gorm:"not null;uniqueIndex"`
	Desc            string    `json:"description" gorm:"column:description;type:text;not null"`
	IsStaffGroup    bool      `json:"isStaffGroup" gorm:"not null"`
	IsMessagesGroup bool      `json:"isMessagesGroup" gorm:"not null"`
	IsHidden        bool      `json:"isHidden" gorm:"not null"`
	MinimumMessages int64     `json:"minimumMessages" gorm:"not null"`
	CreatedAt       time.Time `json:"createdAt" gorm:"not null"`
	Color           string    `json:"color" gorm:"size:20;not null"`
}

// TableName avoids the reserved word GROUPS on MySQL 8.
func (Group) TableName() string {
	return "forum_groups"
}

func (*Group) Description() string {
	return "user groups, ordered by priority"
}

type Profile struct {
	ID              int64          `json:"id" gorm:"primarykey"`
	UserID          int64          `json:"userId" gorm:"not null;uniqueIndex"`
	User            *User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
	MessagesCount   int64          `json:"messagesCount" gorm:"not null"`
	Groups          []*Group       `json:"groups,omitempty" gorm:"many2many:profile_groups"`
	TopGroupID      *int64         `json:"topGroupId" gorm:"index"`
	TopGroup        *Group         `json:"topGroup,omitempty" gorm:"foreignKey:TopGroupID"`
	NameColor       string         `json:"nameColor" gorm:"size:20;not null"`
	Birthdate       datatypes.Date `json:"birthdate" gorm:"not null"`
	Gender          string         `json:"gender" gorm:"size:20;not null"`
	Bio             string         `json:"bio" gorm:"type:text;not null"`
	Localisation    string         `json:"localisation" gorm:"size:255;not null"`
	Loisirs         string         `json:"loisirs" gorm:"size:255;not null"`
	Type            string         `json:"type" gorm:"size:32;not null"`
	FavoriteGames   string         `json:"favoriteGames" gorm:"size:255;not null"`
	ZodiacSign      string         `json:"zodiacSign" gorm:"size:32;not null"`
	Website         string         `json:"website" gorm:"size:255;not null"`
	Signature       string         `json:"signature" gorm:"type:text;not null"`
	EmailIsPublic   bool           `json:"emailIsPublic" gorm:"not null"`
	LastLogin       time.Time      `json:"lastLogin" gorm:"not null"`
	IsHidden        bool           `json:"isHidden" gorm:"not null"`
	DisplayID       int64          `json:"displayId" gorm:"not null;index"`
	DisplayUsername string         `json:"displayUsername" gorm:"size:150;not null"`
}

func (*Profile) Description() string {
	return "per-user forum profile"
}

type Category struct {
	ID          int64    `json:"id" gorm:"primarykey"`
	Name        string   `json:"name" gorm:"size:255;not null"`
	Slug        string   `json:"slug" gorm:"size:255;not null;index"`
	IsHidden    bool     `json:"isHidden" gorm:"not null"`
	IndexTopics []*Topic `json:"-" gorm:"many2many:category_index_topics"`
}

func (*Category) Description() string {
	return "top-level sections of the forum index"
}

type Topic struct {
	ID              int64     `json:"id" gorm:"primarykey"`
	AuthorID        *int64    `json:"authorId" gorm:"index"`
	Author          *User     `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Title           string    `json:"title" gorm:"size:255;not null"`
	Desc            string    `json:"description" gorm:"column:description;size:1000;not null"`
	Icon            string    `json:"icon" gorm:"size:255;not null"`
	Slug            string    `json:"slug" gorm:"size:255;not null;index"`
	CreatedTime     time.Time `json:"createdTime" gorm:"not null;index"`
	LastMessageTime time.Time `json:"lastMessageTime" gorm:"not null;index"`
	TotalChildren   int64     `json:"totalChildren" gorm:"not null"`
	TotalReplies    int64     `json:"totalReplies" gorm:"not null"`
	TotalViews      int64     `json:"totalViews" gorm:"not null"`
	CategoryID      *int64    `json:"categoryId" gorm:"index"`
	ParentID        *int64    `json:"parentId" gorm:"index"`
	LatestMessageID *int64    `json:"latestMessageId"`
	IsSubForum      bool      `json:"isSubForum" gorm:"not null;index"`
	IsLocked        bool      `json:"isLocked" gorm:"not null"`
	IsPinned        bool      `json:"isPinned" gorm:"not null"`
	IsAnnouncement  bool      `json:"isAnnouncement" gorm:"not null"`
	IsIndexTopic    bool      `json:"isIndexTopic" gorm:"not null;index"`
	Moved           bool      `json:"moved" gorm:"not null"`
	DisplayID       int64     `json:"displayId" gorm:"not null;index"`
	DisplayChildren int64     `json:"displayChildren" gorm:"not null"`
	DisplayReplies  int64     `json:"displayReplies" gorm:"not null"`
	DisplayViews    int64     `json:"displayViews" gorm:"not null"`
}

func (*Topic) Description() string {
	return "subforums and regular topics, linked into a tree by parent_id"
}

type Post struct {
	ID          int64      `json:"id" gorm:"primarykey"`
	AuthorID    *int64     `json:"authorId" gorm:"index"`
	Author      *User      `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	TopicID     int64      `json:"topicId" gorm:"not null;index:idx_posts_topic_created,priority:1"`
	Text        string     `json:"text" gorm:"type:text;not null"`
	CreatedTime time.Time  `json:"createdTime" gorm:"not null;index;index:idx_posts_topic_created,priority:2"`
	UpdatedTime *time.Time `json:"updatedTime"`
	UpdateCount int64      `json:"updateCount" gorm:"not null"`
}

func (*Post) Description() string {
	return "messages inside regular topics"
}

type Forum struct {
	ID                 int64     `json:"id" gorm:"primarykey"`
	Name               string    `json:"name" gorm:"size:191;not null;uniqueIndex"`
	TotalUsers         int64     `json:"totalUsers" gorm:"not null"`
	TotalMessages      int64     `json:"totalMessages" gorm:"not null"`
	OnlineRecord       int64     `json:"onlineRecord" gorm:"not null"`
	OnlineRecordDate   time.Time `json:"onlineRecordDate" gorm:"not null"`
	AnnouncementTopics []*Topic  `json:"-" gorm:"many2many:forum_announcement_topics"`
}

func (*Forum) Description() string {
	return "forum-wide counters, one row per forum name"
}

type Poll struct {
	ID                int64         `json:"id" gorm:"primarykey"`
	TopicID           int64         `json:"topicId" gorm:"not null;uniqueIndex"`
	Question          string        `json:"question" gorm:"size:255;not null"`
	CreatedAt         time.Time     `json:"createdAt" gorm:"not null"`
	MaxChoicesPerUser int64         `json:"maxChoicesPerUser" gorm:"not null"`
	DaysToVote        int64         `json:"daysToVote" gorm:"not null"` // -1 means no deadline
	CanChangeVote     bool          `json:"canChangeVote" gorm:"not null"`
	Options           []*PollOption `json:"options,omitempty" gorm:"foreignKey:PollID"`
}

func (*Poll) Description() string {
	return "at most one poll per topic"
}

type PollOption struct {
	ID     int64  `json:"id" gorm:"primarykey"`
	PollID int64  `json:"pollId" gorm:"not null;index"`
	Text   string `json:"text" gorm:"size:255;not null"`
}

type PollOptionVoter struct {
	ID           int64 `json:"id" gorm:"primarykey"`
	PollOptionID int64 `json:"pollOptionId" gorm:"not null;uniqueIndex:uniq_option_voter,priority:1"`
	UserID       int64 `json:"userId" gorm:"not null;uniqueIndex:uniq_option_voter,priority:2;index"`
}

type TopicReadStatus struct {
	ID       int64     `json:"id" gorm:"primarykey"`
	UserID   int64     `json:"userId" gorm:"not null;uniqueIndex:uniq_user_topic,priority:1"`
	TopicID  int64     `json:"topicId" gorm:"not null;uniqueIndex:uniq_user_topic,priority:2"`
	LastRead time.Time `json:"lastRead" gorm:"not null"`
}

// TreeNode maps an ancestor to its child on the path towards a topic.
type TreeNode struct {
	Node     *Topic   `json:"node"`
	Children []*Topic `json:"children"`
}

// ProfileGroup is a row of the profile_groups join table.
type ProfileGroup struct {
	ProfileID int64 `gorm:"primaryKey;autoIncrement:false"`
	GroupID   int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (ProfileGroup) TableName() string {
	return "profile_groups"
}
