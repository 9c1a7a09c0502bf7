package model

import (
	"fmt"
	"time"
)

// MaxTreeDepth bounds every upward or downward walk of the topic tree.
const MaxTreeDepth = 64

// ReplyCount is the number shown in listings. Frozen archives read the display counter.
func (t *Topic) ReplyCount(frozen bool) int64 {
	if frozen {
		return t.DisplayReplies
	}
	return t.TotalReplies
}

func (t *Topic) ChildCount(frozen bool) int64 {
	if frozen {
		return t.DisplayChildren
	}
	return t.TotalChildren
}

func (t *Topic) ViewCount(frozen bool) int64 {
	if frozen {
		return t.DisplayViews
	}
	return t.TotalViews
}

// URL follows the legacy layout: /f<id>-<slug> for subforums, /t<id>-<slug> for topics.
func (t *Topic) URL() string {
	if t.IsSubForum {
		return fmt.Sprintf("/f%d-%s", t.ID, t.Slug)
	}
	return fmt.Sprintf("/t%d-%s", t.ID, t.Slug)
}

// NewTopic fills the counters a freshly created node starts with.
func NewTopic(title string, isSubForum bool, createdTime time.Time) *Topic {
	t := &Topic{
		Title:           title,
		IsSubForum:      isSubForum,
		CreatedTime:     createdTime.UTC(),
		LastMessageTime: createdTime.UTC(),
	}
	if !isSubForum {
		// the opening post is counted as a reply and brings it back to zero
		t.TotalReplies = -1
	}
	return t
}

// RepliesFromPosts turns a post count into the reply count of a regular topic.
func RepliesFromPosts(posts int64) int64 {
	if posts <= 1 {
		return 0
	}
	return posts - 1
}
