package service

import (
	"context"
	"sync"
	"testing"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

func forumTotals(t *testing.T) *model.Forum {
	t.Helper()
	forum, err := dao.StoreInstance.GetForum(context.Background(), config.Cfg.ForumName)
	if err != nil || forum == nil {
		t.Fatalf("GetForum: %v, %v", forum, err)
	}
	return forum
}

func Test_CreatePost(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()
	expectEvents(t, model.EventPostCreated)

	post, outcome, err := Instance.CreatePost(ctx, &NewPost{TopicID: 3, AuthorID: ptr(2), Text: "Encore moi"})
	if err != nil {
		t.Fatal(err)
	}
	if !post.CreatedTime.Equal(testNow) {
		t.Errorf("created time = %v, want the clock", post.CreatedTime)
	}

	if got := forumTotals(t).TotalMessages; got != 7 {
		t.Errorf("forum total_messages = %d, want 7", got)
	}
	if outcome.MessagesCount != 3 {
		t.Errorf("messages count = %d, want 3", outcome.MessagesCount)
	}
	wantTouched := []int64{3, 2, 1}
	if len(outcome.TouchedTopics) != len(wantTouched) {
		t.Fatalf("touched = %v, want %v", outcome.TouchedTopics, wantTouched)
	}
	for i, id := range wantTouched {
		if outcome.TouchedTopics[i] != id {
			t.Errorf("touched = %v, want %v", outcome.TouchedTopics, wantTouched)
		}
	}

	for id, replies := range map[int64]int64{3: 3, 2: 4, 1: 6, 4: 1} {
		topic := reloadTopic(t, id)
		if topic.TotalReplies != replies {
			t.Errorf("topic %d total_replies = %d, want %d", id, topic.TotalReplies, replies)
		}
		if id != 4 && (topic.LatestMessageID == nil || *topic.LatestMessageID != post.ID) {
			t.Errorf("topic %d latest_message_id = %v, want %d", id, topic.LatestMessageID, post.ID)
		}
	}

	// bob reached Habitué
	if len(outcome.AddedGroups) != 1 || outcome.AddedGroups[0].ID != 3 {
		t.Errorf("added groups = %v, want [3]", outcome.AddedGroups)
	}
	profile := reloadProfile(t, 2)
	if profile.TopGroupID == nil || *profile.TopGroupID != 3 || profile.NameColor != "#00FF00" {
		t.Errorf("profile top group %v color %s", profile.TopGroupID, profile.NameColor)
	}
	if profile.MessagesCount != 3 {
		t.Errorf("profile messages_count = %d, want 3", profile.MessagesCount)
	}
}

func Test_CreatePost_Promotion(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	// carol holds no group: her first message makes her Membre
	_, outcome, err := Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(3), Text: "Premier"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.TopGroup == nil || outcome.TopGroup.ID != 2 {
		t.Errorf("top group = %v, want Membre", outcome.TopGroup)
	}

	// skipping thresholds adds every qualifying group, the color of the lowest one wins
	if err := dao.StoreInstance.DB.Model(&model.Profile{}).Where("user_id = ?", 3).Update("messages_count", 9).Error; err != nil {
		t.Fatal(err)
	}
	_, outcome, err = Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(3), Text: "Dixième"})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.AddedGroups) != 2 || outcome.AddedGroups[0].ID != 4 || outcome.AddedGroups[1].ID != 3 {
		t.Errorf("added groups = %v, want [4 3]", outcome.AddedGroups)
	}
	profile := reloadProfile(t, 3)
	if profile.TopGroupID == nil || *profile.TopGroupID != 4 {
		t.Errorf("top group = %v, want Vétéran", profile.TopGroupID)
	}
	if profile.NameColor != "#00FF00" {
		t.Errorf("name color = %s, want the Habitué color", profile.NameColor)
	}
	if len(profile.Groups) != 3 {
		t.Errorf("groups = %v, want 3", profile.Groups)
	}

	// staff keep their top group
	_, outcome, err = Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(4), Text: "Modération"})
	if err != nil {
		t.Fatal(err)
	}
	if got := reloadProfile(t, 4).TopGroupID; got == nil || *got != 5 {
		t.Errorf("staff top group = %v, want 5", got)
	}
}

func Test_CreatePost_PromotionDefaultColor(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	if err := dao.StoreInstance.DB.Model(&model.Group{}).Where("id = ?", 2).Update("color", "").Error; err != nil {
		t.Fatal(err)
	}
	if err := dao.StoreInstance.DB.Model(&model.Profile{}).Where("user_id = ?", 3).Update("name_color", "#123456").Error; err != nil {
		t.Fatal(err)
	}
	if _, _, err := Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(3), Text: "Premier"}); err != nil {
		t.Fatal(err)
	}
	if got := reloadProfile(t, 3).NameColor; got != model.DefaultGroupColor {
		t.Errorf("name color = %q, want %q", got, model.DefaultGroupColor)
	}
}

func Test_CreatePost_Anonymous(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	post, outcome, err := Instance.CreatePost(ctx, &NewPost{TopicID: 5, Text: "Invité"})
	if err != nil {
		t.Fatal(err)
	}
	if post.AuthorID != nil || outcome.MessagesCount != 0 {
		t.Errorf("anonymous post %+v outcome %+v", post, outcome)
	}
	if got := reloadTopic(t, 5).TotalReplies; got != 1 {
		t.Errorf("total_replies = %d, want 1", got)
	}
}

func Test_CreatePost_Rejected(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func()
		req     *NewPost
		wantErr int32
	}{
		{name: "empty text", req: &NewPost{TopicID: 3, AuthorID: ptr(1), Text: "  "}, wantErr: common.Code_ValidationFailed},
		{name: "subforum", req: &NewPost{TopicID: 1, AuthorID: ptr(1), Text: "x"}, wantErr: common.Code_ValidationFailed},
		{name: "missing topic", req: &NewPost{TopicID: 404, AuthorID: ptr(1), Text: "x"}, wantErr: common.Code_NotFound},
		{
			name: "locked topic",
			prepare: func() {
				dao.StoreInstance.DB.Model(&model.Topic{}).Where("id = ?", 3).Update("is_locked", true)
			},
			req:     &NewPost{TopicID: 3, AuthorID: ptr(1), Text: "x"},
			wantErr: common.Code_NotPermitted,
		},
		{
			name: "frozen",
			prepare: func() {
				config.Cfg.Frozen = true
			},
			req:     &NewPost{TopicID: 4, AuthorID: ptr(1), Text: "x"},
			wantErr: common.Code_NotPermitted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepareTestDatabase()
			if tt.prepare != nil {
				tt.prepare()
			}
			_, _, err := Instance.CreatePost(ctx, tt.req)
			wantCode(t, err, tt.wantErr)
			config.Cfg.Frozen = false
			if got := forumTotals(t).TotalMessages; got != 6 {
				t.Errorf("a rejected post changed total_messages to %d", got)
			}
		})
	}
}

func Test_CreatePost_LockedByStaff(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	dao.StoreInstance.DB.Model(&model.Topic{}).Where("id = ?", 3).Update("is_locked", true)
	if _, _, err := Instance.CreatePost(ctx, &NewPost{TopicID: 3, AuthorID: ptr(4), Text: "Verrouillé"}); err != nil {
		t.Fatal(err)
	}
}

func Test_CreatePost_Concurrent(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(1), Text: "flood"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if got := forumTotals(t).TotalMessages; got != 6+n {
		t.Errorf("total_messages = %d, want %d", got, 6+n)
	}
	if got := reloadProfile(t, 1).MessagesCount; got != 3+n {
		t.Errorf("messages_count = %d, want %d", got, 3+n)
	}
	if got := reloadTopic(t, 4).TotalReplies; got != 1+n {
		t.Errorf("topic 4 total_replies = %d, want %d", got, 1+n)
	}
	if got := reloadTopic(t, 1).TotalReplies; got != 5+n {
		t.Errorf("topic 1 total_replies = %d, want %d", got, 5+n)
	}
}

func Test_CreatePost_InvalidatesCounts(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	if got, err := Instance.TotalMessagesAsOf(ctx, nil); err != nil || got != 6 {
		t.Fatalf("TotalMessagesAsOf = %d, %v", got, err)
	}
	if _, _, err := Instance.CreatePost(ctx, &NewPost{TopicID: 4, AuthorID: ptr(1), Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if got, _ := Instance.TotalMessagesAsOf(ctx, nil); got != 7 {
		t.Errorf("TotalMessagesAsOf after post = %d, want 7", got)
	}
	if got, _ := Instance.UserMessageCountAsOf(ctx, 1, nil); got != 4 {
		t.Errorf("UserMessageCountAsOf after post = %d, want 4", got)
	}
}

func Test_EditPost(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()
	expectEvents(t, model.EventPostUpdated, model.EventPostUpdated)

	post, err := Instance.EditPost(ctx, 1, 1, "Bonjour [i]à tous[/i]")
	if err != nil {
		t.Fatal(err)
	}
	if post.UpdateCount != 1 || post.UpdatedTime == nil || !post.UpdatedTime.Equal(testNow) {
		t.Errorf("edited post = %+v", post)
	}

	// staff may edit anyone
	if post, err = Instance.EditPost(ctx, 1, 4, "Modéré"); err != nil {
		t.Fatal(err)
	}
	if post.UpdateCount != 2 || post.Text != "Modéré" {
		t.Errorf("edited post = %+v", post)
	}

	_, err = Instance.EditPost(ctx, 1, 2, "pirate")
	wantCode(t, err, common.Code_NotPermitted)
	_, err = Instance.EditPost(ctx, 404, 1, "x")
	wantCode(t, err, common.Code_NotFound)
}
