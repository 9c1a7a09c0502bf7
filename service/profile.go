package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

const (
	birthdayWindowDays = 7
	topTenSize         = 10
)

// NewProfile is the input of CreateProfile.
type NewProfile struct {
	Username   string
	Email      string
	IsStaff    bool
	DateJoined time.Time
	Birthdate  time.Time
	Gender     string
	Bio        string
	Website    string
	Signature  string
}

type ProfileDetails struct {
	Profile         *model.Profile `json:"profile"`
	Group           *model.Group   `json:"group"`
	Age             int            `json:"age"`
	Messages        int64          `json:"messages"`
	SharePercentage float64        `json:"sharePercentage"`
	Frequency       string         `json:"frequency"`
	AsOf            time.Time      `json:"asOf"`
}

type MemberEntry struct {
	*dao.MemberRow
	LastVisit time.Time `json:"lastVisit"`
}

type MemberList struct {
	Mode       string           `json:"mode"`
	Order      string           `json:"order"`
	Members    []*MemberEntry   `json:"members"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	MaxPage    int              `json:"maxPage"`
	Pagination []model.PageLink `json:"pagination"`
	AsOf       time.Time        `json:"asOf"`
}

type BirthdayEntry struct {
	UserID   int64     `json:"userId"`
	Username string    `json:"username"`
	Date     time.Time `json:"date"`
	Age      int       `json:"age"`
}

type Birthdays struct {
	Today    []*BirthdayEntry `json:"today"`
	Upcoming []*BirthdayEntry `json:"upcoming"`
}

func (service *Service) CreateProfile(ctx context.Context, req *NewProfile) (*model.Profile, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, common.ValidationFailed("username is required")
	}
	joined := req.DateJoined
	if joined.IsZero() {
		joined = service.now()
	}

	user := &model.User{
		Username:   username,
		Email:      req.Email,
		DateJoined: joined.UTC(),
		IsStaff:    req.IsStaff,
		IsActive:   true,
	}
	profile := &model.Profile{
		NameColor:       model.DefaultGroupColor,
		Birthdate:       datatypes.Date(req.Birthdate),
		Gender:          req.Gender,
		Bio:             req.Bio,
		Website:         req.Website,
		Signature:       req.Signature,
		LastLogin:       joined.UTC(),
		DisplayUsername: username,
	}
	if err := dao.StoreInstance.CreateProfile(ctx, user, profile, config.Cfg.ForumName); err != nil {
		if dao.IsDuplicated(err) {
			return nil, common.ValidationFailed("username already taken")
		}
		return nil, service.report("CreateProfile dao.StoreInstance.CreateProfile", err)
	}
	return dao.StoreInstance.GetProfileByUser(ctx, user.ID)
}

// SetGroups replaces the groups of the member userID.
func (service *Service) SetGroups(ctx context.Context, userID int64, groupIDs []int64) (*model.Profile, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	profile, err := dao.StoreInstance.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, service.report("SetGroups dao.StoreInstance.GetProfileByUser", err)
	}
	profile, err = dao.StoreInstance.SetGroups(ctx, profile.ID, uniqueIDs(groupIDs))
	if err != nil {
		return nil, service.report("SetGroups dao.StoreInstance.SetGroups", err)
	}
	return profile, nil
}

func (service *Service) AddGroups(ctx context.Context, userID int64, groupIDs []int64) (*model.Profile, error) {
	if frozen() {
		return nil, common.NotPermitted("the archive is read-only")
	}
	profile, err := dao.StoreInstance.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, service.report("AddGroups dao.StoreInstance.GetProfileByUser", err)
	}
	profile, err = dao.StoreInstance.AddGroups(ctx, profile.ID, uniqueIDs(groupIDs))
	if err != nil {
		return nil, service.report("AddGroups dao.StoreInstance.AddGroups", err)
	}
	return profile, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	res := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			res = append(res, id)
		}
	}
	return res
}

// TopGroup is the stored top group, else the best held group, else the lowest group of the forum.
func (service *Service) TopGroup(ctx context.Context, profile *model.Profile) (*model.Group, error) {
	if profile.TopGroup != nil {
		return profile.TopGroup, nil
	}
	var fallback *model.Group
	if len(profile.Groups) == 0 {
		lowest, err := dao.StoreInstance.LowestGroup(ctx)
		if err != nil {
			return nil, service.report("TopGroup dao.StoreInstance.LowestGroup", err)
		}
		fallback = lowest
	}
	return model.PickTopGroup(profile.Groups, fallback), nil
}

// PastUserGroup is the group the member displayed at asOf. Hand-assigned groups never change;
// messages groups follow the message count of that time.
func (service *Service) PastUserGroup(ctx context.Context, profile *model.Profile, asOf *time.Time) (*model.Group, error) {
	current, err := service.TopGroup(ctx, profile)
	if err != nil || asOf == nil || current == nil || current.IsSpecial() {
		return current, err
	}
	pastMessages, err := service.UserMessageCountAsOf(ctx, profile.UserID, asOf)
	if err != nil {
		return nil, err
	}
	groups, err := dao.StoreInstance.GetGroupsOrdered(ctx)
	if err != nil {
		return nil, service.report("PastUserGroup dao.StoreInstance.GetGroupsOrdered", err)
	}
	return model.PastGroup(current, groups, pastMessages), nil
}

func (service *Service) ProfileDetails(ctx context.Context, userID int64, asOf *time.Time) (*ProfileDetails, error) {
	at := service.instant(asOf)
	profile, err := dao.StoreInstance.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, service.report("ProfileDetails dao.StoreInstance.GetProfileByUser", err)
	}
	if profile.User == nil || profile.User.DateJoined.After(at) || profile.IsHidden {
		return nil, common.NotFound("profile")
	}

	details := &ProfileDetails{Profile: profile, Age: profile.Age(at), AsOf: at}
	if details.Group, err = service.PastUserGroup(ctx, profile, asOf); err != nil {
		return nil, err
	}
	if details.Messages, err = service.UserMessageCountAsOf(ctx, userID, asOf); err != nil {
		return nil, err
	}
	total, err := service.TotalMessagesAsOf(ctx, asOf)
	if err != nil {
		return nil, err
	}
	details.SharePercentage = model.SharePercentage(details.Messages, total)
	details.Frequency = model.MessageFrequency(details.Messages, profile.User.DateJoined, at)
	return details, nil
}

// MemberList pages through the members known at asOf. mode is one of the dao.MemberSort keys
// or "topten", which always returns the ten biggest posters without pagination.
func (service *Service) MemberList(ctx context.Context, asOf *time.Time, mode, order string, page int) (*MemberList, error) {
	at := service.instant(asOf)
	desc := strings.EqualFold(order, "DESC")
	list := &MemberList{Mode: mode, Order: "ASC", AsOf: at, Pagination: []model.PageLink{}}
	if desc {
		list.Order = "DESC"
	}

	orderBy, offset, limit := "", 0, 0
	if mode == "topten" {
		orderBy, desc, limit = dao.MemberSort["posts"], true, topTenSize
		list.Order = "DESC"
		list.Page, list.MaxPage = 1, 1
	} else {
		var ok bool
		if orderBy, ok = dao.MemberSort[mode]; !ok {
			list.Mode = "joined"
			orderBy = dao.MemberSort["joined"]
		}
		limit = config.Cfg.MembersPerPage
		if limit <= 0 {
			limit = model.MembersPerPage
		}
		if page < 1 {
			page = 1
		}
		offset = (page - 1) * limit
	}

	rows, total, err := dao.StoreInstance.Members(ctx, at, dao.MemberFilter[list.Mode], orderBy, desc, offset, limit)
	if err != nil {
		return nil, service.report("MemberList dao.StoreInstance.Members", err)
	}
	list.Total = total
	if mode != "topten" {
		list.MaxPage = pageCount(total, limit)
		list.Page = clampPage(page, list.MaxPage)
		list.Pagination = model.GeneratePagination(list.Page, list.MaxPage)
	}

	list.Members = make([]*MemberEntry, 0, len(rows))
	for _, r := range rows {
		entry := &MemberEntry{MemberRow: r, LastVisit: r.LastLogin}
		if asOf != nil && r.LastLogin.After(at) {
			entry.LastVisit = r.DateJoined
		}
		list.Members = append(list.Members, entry)
	}
	return list, nil
}

// nextBirthday is the first anniversary of birth at or after the day of at.
func nextBirthday(birth, at time.Time) time.Time {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	next := time.Date(day.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(day) {
		next = time.Date(day.Year()+1, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	}
	return next
}

// Birthdays lists members born on the day of asOf, and those whose birthday falls within
// the following week, today included.
func (service *Service) Birthdays(ctx context.Context, asOf *time.Time) (*Birthdays, error) {
	at := service.instant(asOf)
	profiles, err := dao.StoreInstance.BirthdayCandidates(ctx, at)
	if err != nil {
		return nil, service.report("Birthdays dao.StoreInstance.BirthdayCandidates", err)
	}

	today := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	limit := today.AddDate(0, 0, birthdayWindowDays)
	res := &Birthdays{Today: []*BirthdayEntry{}, Upcoming: []*BirthdayEntry{}}
	for _, p := range profiles {
		if p.User == nil || p.IsHidden {
			continue
		}
		birth := time.Time(p.Birthdate).UTC()
		next := nextBirthday(birth, at)
		if next.After(limit) {
			continue
		}
		entry := &BirthdayEntry{UserID: p.UserID, Username: p.User.Username, Date: next, Age: p.Age(next)}
		if next.Equal(today) {
			res.Today = append(res.Today, entry)
		}
		res.Upcoming = append(res.Upcoming, entry)
	}
	sort.SliceStable(res.Upcoming, func(i, j int) bool {
		if !res.Upcoming[i].Date.Equal(res.Upcoming[j].Date) {
			return res.Upcoming[i].Date.Before(res.Upcoming[j].Date)
		}
		return res.Upcoming[i].UserID < res.Upcoming[j].UserID
	})
	return res, nil
}

func (service *Service) GroupsWithMembers(ctx context.Context) ([]*dao.GroupWithMembers, error) {
	groups, err := dao.StoreInstance.GroupsWithMembers(ctx)
	if err != nil {
		return nil, service.report("GroupsWithMembers dao.StoreInstance.GroupsWithMembers", err)
	}
	return groups, nil
}

type GroupDetails struct {
	Group      *model.Group     `json:"group"`
	Mods       []*dao.MemberRow `json:"mods"`
	Members    []*dao.MemberRow `json:"members"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	MaxPage    int              `json:"maxPage"`
	Pagination []model.PageLink `json:"pagination"`
	AsOf       time.Time        `json:"asOf"`
}

// GroupDetails lists the staff and, by username, a page of the members of a group among the
// users who had joined at asOf. In the past a messages group holds whoever had written
// enough messages by then, since holdings are only known for the present.
func (service *Service) GroupDetails(ctx context.Context, groupID int64, asOf *time.Time, page, perPage int) (*GroupDetails, error) {
	at := service.instant(asOf)
	group, err := dao.StoreInstance.GetGroup(ctx, groupID)
	if err != nil {
		return nil, service.report("GroupDetails dao.StoreInstance.GetGroup", err)
	}
	if perPage <= 0 {
		perPage = config.Cfg.MembersPerPage
	}
	if perPage > config.Cfg.MaxGroupPerPage {
		perPage = config.Cfg.MaxGroupPerPage
	}
	if page < 1 {
		page = 1
	}

	details := &GroupDetails{Group: group, AsOf: at}
	if details.Mods, _, err = dao.StoreInstance.Members(ctx, at, dao.StaffFilter, dao.MemberSort["username"], false, 0, -1); err != nil {
		return nil, service.report("GroupDetails dao.StoreInstance.Members(staff)", err)
	}

	filter := dao.HolderFilter(group.ID)
	if asOf != nil && group.IsMessagesGroup {
		filter = dao.PosterFilter(at, group.MinimumMessages)
	}
	details.Members, details.Total, err = dao.StoreInstance.Members(ctx, at, filter, dao.MemberSort["username"], false, (page-1)*perPage, perPage)
	if err != nil {
		return nil, service.report("GroupDetails dao.StoreInstance.Members", err)
	}
	details.MaxPage = pageCount(details.Total, perPage)
	details.Page = clampPage(page, details.MaxPage)
	details.Pagination = model.GeneratePagination(details.Page, details.MaxPage)
	return details, nil
}

// RequireStaff fails with NotPermitted unless userID is a staff member.
func (service *Service) RequireStaff(ctx context.Context, userID int64) error {
	user, err := dao.StoreInstance.GetUser(ctx, userID)
	if err != nil {
		if common.HasCode(err, common.Code_NotFound) {
			return common.NotPermitted("")
		}
		return service.report("RequireStaff dao.StoreInstance.GetUser", err)
	}
	if !user.IsStaff {
		return common.NotPermitted("staff only")
	}
	return nil
}
