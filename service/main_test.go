package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-testfixtures/testfixtures/v3"
	"github.com/golang/mock/gomock"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/model"
	"github.com/theotor83/utf-rewritten-sub000/publisher"
	"github.com/theotor83/utf-rewritten-sub000/publisher/mock"
)

var (
	fixtures  *testfixtures.Loader
	miniRedis *miniredis.Miniredis
)

// testNow is the clock of every test: after the last fixture post, on bob's birthday eve.
var testNow = time.Date(2021, 12, 30, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	var err error

	config.Cfg.DBDialect = model.DialectSQLite
	config.Cfg.DBDsn = "file::memory:"
	dbInstance := model.GetInstance()

	log := common.GetLogger()

	dao.StoreInstance = &dao.Store{
		DB:  dbInstance,
		Log: log,
	}
	if err := dao.StoreInstance.Reset(); err != nil {
		log.Fatal(err)
	}
	Instance = &Service{
		Log:   log,
		Pub:   &publisher.NopPublisher{Log: log},
		Clock: func() time.Time { return testNow },
	}

	ddb, _ := dbInstance.DB()
	fixtures, err = testfixtures.New(
		testfixtures.Database(ddb),
		testfixtures.Dialect("sqlite"),
		testfixtures.Directory("../fixtures"),
		testfixtures.Location(time.UTC),
		testfixtures.DangerousSkipTestDatabaseCheck(),
	)
	if err != nil {
		log.Fatal(err)
	}

	// redisInstance
	dao.RedisInstance = &dao.Redis{
		Log: log,
		RedisClient: func() redis.UniversalClient {
			if os.Getenv("REDIS_MODE") == "local" {
				return model.GetRedis()
			}
			client, mini := model.GetRedisMock()
			miniRedis = mini
			return client
		}(),
	}

	os.Exit(m.Run())
}

func prepareTestDatabase() {
	if err := fixtures.Load(); err != nil {
		common.GetLogger().Fatal(err)
	}
	if err := dao.RedisInstance.RedisClient.FlushAll(context.Background()).Err(); err != nil {
		common.GetLogger().Fatal(err)
	}
	config.Cfg.Frozen = false
	Instance.Pub = &publisher.NopPublisher{Log: Instance.Log}
}

// expectEvents swaps in a publisher mock expecting exactly the given events, in order.
func expectEvents(t *testing.T, events ...string) {
	ctrl := gomock.NewController(t)
	mockPub := mock.NewMockPublisher(ctrl)
	calls := make([]*gomock.Call, 0, len(events))
	for _, e := range events {
		calls = append(calls, mockPub.EXPECT().PubEvent(gomock.Any(), e, gomock.Any()).Return(nil))
	}
	gomock.InOrder(calls...)
	Instance.Pub = mockPub
}

func ptr(v int64) *int64 {
	return &v
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func wantCode(t *testing.T, err error, code int32) {
	t.Helper()
	if !common.HasCode(err, code) {
		t.Fatalf("err = %v, want code %d", err, code)
	}
}

func reloadTopic(t *testing.T, id int64) *model.Topic {
	t.Helper()
	topic, err := dao.StoreInstance.GetTopic(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return topic
}

func reloadProfile(t *testing.T, userID int64) *model.Profile {
	t.Helper()
	profile, err := dao.StoreInstance.GetProfileByUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return profile
}
