package model

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	uuid "github.com/satori/go.uuid"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
)

var RedisLockSecret string

func init() {
	RedisLockSecret = uuid.NewV1().String()
	common.GetLogger().Debugf("RedisLockSecret: %v", RedisLockSecret)
}

// GetRedis returns a cluster client when several addresses are configured, a plain client otherwise.
func GetRedis() redis.UniversalClient {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:              config.Cfg.RedisDsn,
		PoolSize:           10,
		IdleTimeout:        5 * time.Minute,
		Password:           config.Cfg.RedisPassword,
		MaxRetries:         3,
		IdleCheckFrequency: time.Minute,
	})
	statusRes, err := rdb.Ping(context.Background()).Result()
	if err != nil {
		pingErr := fmt.Errorf("rdb.Ping fail, err: %v", err)
		sentry.CaptureException(pingErr)
		common.GetLogger().Fatal(pingErr)
	}
	if statusRes != "PONG" {
		pingErr := fmt.Errorf("rdb.Ping fail, result: %v != PONG", statusRes)
		sentry.CaptureException(pingErr)
		common.GetLogger().Fatal(pingErr)
	}

	return rdb
}

// GetRedisMock starts an in-process miniredis and returns a client to it.
func GetRedisMock() (redis.UniversalClient, *miniredis.Miniredis) {
	mock, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         mock.Addr(),
		PoolSize:     100,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolTimeout:  30 * time.Second,
	})

	return rdb, mock
}

// redis key
func lockPrefix() string  { return config.Cfg.RedisPrefix + ":lock" }
func countPrefix() string { return config.Cfg.RedisPrefix + ":count" }

func KeyLockReconcile() string {
	return lockPrefix() + ":reconcileCounters"
}

// AsOfKey renders an instant for cache keys; nil is the live view.
func AsOfKey(asOf *time.Time) string {
	if asOf == nil {
		return "now"
	}
	return asOf.UTC().Format("2006-01-02T15:04:05")
}

func GetKeyForTotalMessages(asOf *time.Time) string {
	return countPrefix() + ":totalMessages:" + AsOfKey(asOf)
}

func GetKeyForUserMessageCount(userID int64, asOf *time.Time) string {
	return countPrefix() + fmt.Sprintf(":userMessages:%d:", userID) + AsOfKey(asOf)
}

func GetKeyForIndexSnapshot(asOf *time.Time) string {
	return config.Cfg.RedisPrefix + ":index:" + AsOfKey(asOf)
}
