package service

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
)

func Test_ProfileDetails(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    int64
		asOf      *time.Time
		wantErr   int32
		wantMsgs  int64
		wantShare float64
		wantGroup string
		wantAge   int
	}{
		{name: "present", userID: 1, wantMsgs: 3, wantShare: 50, wantGroup: "Habitué", wantAge: 31},
		{name: "past count drops the group", userID: 1, asOf: date("2020-01-01 10:00:00"), wantMsgs: 2, wantShare: 66.67, wantGroup: "Membre", wantAge: 29},
		{name: "staff group is kept", userID: 4, asOf: date("2019-02-01 00:00:00"), wantMsgs: 0, wantShare: 0, wantGroup: "Modérateur", wantAge: 33},
		{name: "not joined yet", userID: 3, asOf: date("2020-01-01 00:00:00"), wantErr: common.Code_NotFound},
		{name: "unknown", userID: 404, wantErr: common.Code_NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := Instance.ProfileDetails(ctx, tt.userID, tt.asOf)
			if tt.wantErr != 0 {
				wantCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if details.Messages != tt.wantMsgs || details.SharePercentage != tt.wantShare {
				t.Errorf("messages %d share %v, want %d %v", details.Messages, details.SharePercentage, tt.wantMsgs, tt.wantShare)
			}
			if details.Group == nil || details.Group.Name != tt.wantGroup {
				t.Errorf("group = %v, want %s", details.Group, tt.wantGroup)
			}
			if details.Age != tt.wantAge {
				t.Errorf("age = %d, want %d", details.Age, tt.wantAge)
			}
		})
	}
}

func memberNames(list *MemberList) []string {
	names := make([]string, 0, len(list.Members))
	for _, m := range list.Members {
		names = append(names, m.Username)
	}
	return names
}

func Test_MemberList(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name      string
		asOf      *time.Time
		mode      string
		order     string
		wantMode  string
		wantNames []string
	}{
		{name: "topten", mode: "topten", wantMode: "topten", wantNames: []string{"alice", "bob", "dave", "carol"}},
		{name: "joined", mode: "joined", wantMode: "joined", wantNames: []string{"alice", "bob", "carol", "dave"}},
		{name: "joined in the past", asOf: date("2020-01-01 00:00:00"), mode: "joined", wantMode: "joined", wantNames: []string{"alice", "bob", "dave"}},
		{name: "username desc", mode: "username", order: "desc", wantMode: "username", wantNames: []string{"dave", "carol", "bob", "alice"}},
		{name: "public emails", mode: "email", wantMode: "email", wantNames: []string{"alice"}},
		{name: "websites", mode: "website", wantMode: "website", wantNames: []string{"alice"}},
		{name: "unknown mode", mode: "karma", wantMode: "joined", wantNames: []string{"alice", "bob", "carol", "dave"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Instance.MemberList(ctx, tt.asOf, tt.mode, tt.order, 1)
			if err != nil {
				t.Fatal(err)
			}
			if list.Mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", list.Mode, tt.wantMode)
			}
			if got := memberNames(list); !reflect.DeepEqual(got, tt.wantNames) {
				t.Errorf("members = %v, want %v", got, tt.wantNames)
			}
			if list.Total != int64(len(tt.wantNames)) || list.Page != 1 || list.MaxPage != 1 {
				t.Errorf("total %d page %d/%d", list.Total, list.Page, list.MaxPage)
			}
		})
	}
}

func Test_MemberList_PastActivity(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	list, err := Instance.MemberList(ctx, date("2020-01-01 00:00:00"), "topten", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range list.Members {
		switch m.Username {
		case "alice":
			if m.PastMessages != 1 {
				t.Errorf("alice past messages = %d, want 1", m.PastMessages)
			}
			if !m.LastVisit.Equal(*date("2019-12-31 20:00:00")) {
				t.Errorf("alice last visit = %v", m.LastVisit)
			}
		case "bob":
			// logged in after the listing instant
			if !m.LastVisit.Equal(m.DateJoined) {
				t.Errorf("bob last visit = %v, want date joined", m.LastVisit)
			}
		}
	}
}

func Test_Birthdays(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	res, err := Instance.Birthdays(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Today) != 1 || res.Today[0].Username != "bob" || res.Today[0].Age != 26 {
		t.Errorf("today = %+v", res.Today)
	}
	var names []string
	for _, b := range res.Upcoming {
		names = append(names, b.Username)
	}
	if !reflect.DeepEqual(names, []string{"bob", "carol", "alice"}) {
		t.Errorf("upcoming = %v", names)
	}
	if res.Upcoming[1].Age != 22 {
		t.Errorf("carol turns %d, want 22", res.Upcoming[1].Age)
	}
}

func Test_NextBirthday(t *testing.T) {
	tests := []struct {
		birth, at, want time.Time
	}{
		{
			birth: time.Date(1990, 1, 5, 0, 0, 0, 0, time.UTC),
			at:    time.Date(2021, 12, 30, 12, 0, 0, 0, time.UTC),
			want:  time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			birth: time.Date(1995, 12, 30, 0, 0, 0, 0, time.UTC),
			at:    time.Date(2021, 12, 30, 23, 59, 0, 0, time.UTC),
			want:  time.Date(2021, 12, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			birth: time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC),
			at:    time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		if got := nextBirthday(tt.birth, tt.at); !got.Equal(tt.want) {
			t.Errorf("nextBirthday(%v, %v) = %v, want %v", tt.birth, tt.at, got, tt.want)
		}
	}
}

func Test_CreateProfile(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	profile, err := Instance.CreateProfile(ctx, &NewProfile{
		Username:  " erin ",
		Email:     "erin@utf.test",
		Birthdate: time.Date(2001, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if profile.User.Username != "erin" || !profile.User.DateJoined.Equal(testNow) {
		t.Errorf("user = %+v", profile.User)
	}
	if profile.TopGroup == nil || profile.TopGroup.Name != "Outsider" {
		t.Errorf("top group = %v, want Outsider", profile.TopGroup)
	}
	if got := forumTotals(t).TotalUsers; got != 5 {
		t.Errorf("total_users = %d, want 5", got)
	}

	_, err = Instance.CreateProfile(ctx, &NewProfile{Username: "erin"})
	wantCode(t, err, common.Code_ValidationFailed)
	_, err = Instance.CreateProfile(ctx, &NewProfile{Username: "  "})
	wantCode(t, err, common.Code_ValidationFailed)
	if got := forumTotals(t).TotalUsers; got != 5 {
		t.Errorf("rejected profiles changed total_users to %d", got)
	}

	config.Cfg.Frozen = true
	_, err = Instance.CreateProfile(ctx, &NewProfile{Username: "frank"})
	config.Cfg.Frozen = false
	wantCode(t, err, common.Code_NotPermitted)
}

func Test_SetGroups(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name       string
		userID     int64
		groupIDs   []int64
		wantErr    int32
		wantTop    int64
		wantGroups int
	}{
		{name: "promote to staff", userID: 2, groupIDs: []int64{2, 5, 5}, wantTop: 5, wantGroups: 2},
		{name: "clear falls back to the lowest group", userID: 1, groupIDs: nil, wantTop: 1, wantGroups: 0},
		{name: "unknown group", userID: 1, groupIDs: []int64{2, 42}, wantErr: common.Code_NotFound},
		{name: "unknown member", userID: 404, groupIDs: []int64{2}, wantErr: common.Code_NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepareTestDatabase()
			profile, err := Instance.SetGroups(ctx, tt.userID, tt.groupIDs)
			if tt.wantErr != 0 {
				wantCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if profile.TopGroupID == nil || *profile.TopGroupID != tt.wantTop {
				t.Errorf("top group = %v, want %d", profile.TopGroupID, tt.wantTop)
			}
			if len(profile.Groups) != tt.wantGroups {
				t.Errorf("groups = %d, want %d", len(profile.Groups), tt.wantGroups)
			}
		})
	}
}

func Test_AddGroups(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	profile, err := Instance.AddGroups(ctx, 1, []int64{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(profile.Groups) != 3 || *profile.TopGroupID != 4 {
		t.Errorf("groups %d top %v", len(profile.Groups), *profile.TopGroupID)
	}
}

func Test_TopGroup_Fallback(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	profile := reloadProfile(t, 3)
	profile.TopGroup = nil
	group, err := Instance.TopGroup(ctx, profile)
	if err != nil {
		t.Fatal(err)
	}
	if group == nil || group.Name != "Outsider" {
		t.Errorf("top group = %v, want Outsider", group)
	}
}

func Test_GroupsWithMembers(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	groups, err := Instance.GroupsWithMembers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"Modérateur": 1, "Vétéran": 0, "Habitué": 1, "Membre": 2, "Outsider": 0}
	if len(groups) != len(want) || groups[0].Name != "Modérateur" {
		t.Fatalf("groups = %v", groups)
	}
	for _, g := range groups {
		if g.Members != want[g.Name] {
			t.Errorf("%s has %d members, want %d", g.Name, g.Members, want[g.Name])
		}
	}
}

func Test_RequireStaff(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	if err := Instance.RequireStaff(ctx, 4); err != nil {
		t.Error(err)
	}
	wantCode(t, Instance.RequireStaff(ctx, 1), common.Code_NotPermitted)
	wantCode(t, Instance.RequireStaff(ctx, 404), common.Code_NotPermitted)
}

func usernames(rows []*dao.MemberRow) string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Username)
	}
	return strings.Join(names, ",")
}

func Test_GroupDetails(t *testing.T) {
	prepareTestDatabase()
	ctx := context.Background()

	tests := []struct {
		name        string
		groupID     int64
		asOf        *time.Time
		page        int
		perPage     int
		wantMods    string
		wantMembers string
		wantTotal   int64
		wantMaxPage int
	}{
		{name: "holders by username", groupID: 2, wantMods: "dave", wantMembers: "alice,bob", wantTotal: 2, wantMaxPage: 1},
		{name: "second page", groupID: 2, page: 2, perPage: 1, wantMods: "dave", wantMembers: "bob", wantTotal: 2, wantMaxPage: 2},
		{name: "staff are not members", groupID: 5, wantMods: "dave", wantMembers: "", wantTotal: 0, wantMaxPage: 1},
		{name: "nobody holds it", groupID: 4, wantMods: "dave", wantMembers: "", wantTotal: 0, wantMaxPage: 1},
		{name: "past posters", groupID: 2, asOf: date("2019-03-01 00:00:00"), wantMods: "dave", wantMembers: "alice", wantTotal: 1, wantMaxPage: 1},
		{name: "not enough messages yet", groupID: 3, asOf: date("2020-02-01 00:00:00"), wantMods: "dave", wantMembers: "", wantTotal: 0, wantMaxPage: 1},
		{name: "enough messages later", groupID: 3, asOf: date("2020-03-01 12:00:00"), wantMods: "dave", wantMembers: "alice", wantTotal: 1, wantMaxPage: 1},
		{name: "before the staff joined", groupID: 2, asOf: date("2018-12-31 00:00:00"), wantMods: "", wantMembers: "", wantTotal: 0, wantMaxPage: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := Instance.GroupDetails(ctx, tt.groupID, tt.asOf, tt.page, tt.perPage)
			if err != nil {
				t.Fatal(err)
			}
			if got := usernames(details.Mods); got != tt.wantMods {
				t.Errorf("mods = %q, want %q", got, tt.wantMods)
			}
			if got := usernames(details.Members); got != tt.wantMembers {
				t.Errorf("members = %q, want %q", got, tt.wantMembers)
			}
			if details.Total != tt.wantTotal || details.MaxPage != tt.wantMaxPage {
				t.Errorf("total %d max page %d", details.Total, details.MaxPage)
			}
		})
	}

	_, err := Instance.GroupDetails(ctx, 99, nil, 1, 0)
	wantCode(t, err, common.Code_NotFound)
}
