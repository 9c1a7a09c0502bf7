package dao

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

type Redis struct {
	Log         *logrus.Entry
	RedisClient redis.UniversalClient
}

var RedisInstance *Redis

// ErrLockHeld is returned by Lock when another holder owns the key.
var ErrLockHeld = errors.New("redis lock held")

func init() {
	rand.Seed(time.Now().UnixNano())
}

// GetCount reads a cached counter. ok is false on a miss.
func (r *Redis) GetCount(ctx context.Context, key string) (count int64, ok bool, err error) {
	val, err := r.RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		currErr := fmt.Errorf("[dao redis] GetCount Get err: %v, key: %v", err, key)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return 0, false, err
	}
	count, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.Log.Errorf("[dao redis] GetCount ParseInt err: %v, key: %v, val: %v", err, key, val)
		return 0, false, nil
	}
	return count, true, nil
}

func (r *Redis) SetCount(ctx context.Context, key string, count int64) error {
	exp := time.Duration(config.Cfg.CountCacheTTLSec) * time.Second
	if err := r.RedisClient.Set(ctx, key, count, exp).Err(); err != nil {
		currErr := fmt.Errorf("[dao redis] SetCount Set err: %v, key: %v", err, key)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return err
	}
	return nil
}

// SetJSON caches v for a random duration in [10, 30) hours.
func (r *Redis) SetJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	exp := time.Duration(10+rand.Intn(20)) * time.Hour // [10, 30)
	if err := r.RedisClient.Set(ctx, key, b, exp).Err(); err != nil {
		currErr := fmt.Errorf("[dao redis] SetJSON Set err: %v, key: %v", err, key)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return err
	}
	return nil
}

// GetJSON decodes the cached value of key into v. ok is false on a miss.
func (r *Redis) GetJSON(ctx context.Context, key string, v interface{}) (ok bool, err error) {
	b, err := r.RedisClient.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		currErr := fmt.Errorf("[dao redis] GetJSON Get err: %v, key: %v", err, key)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		currErr := fmt.Errorf("[dao redis] GetJSON Unmarshal err: %v, key: %v", err, key)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return false, nil
	}
	return true, nil
}

func (r *Redis) Lock(ctx context.Context, lockKey string) error {
	r.Log.Infof("[dao] redis lock, will setNX, key: %v, value: %v, expiration: %v",
		lockKey, model.RedisLockSecret, time.Duration(config.Cfg.RedisLockExpirationSec)*time.Second)

	resp := r.RedisClient.SetNX(
		ctx, lockKey, model.RedisLockSecret, time.Duration(config.Cfg.RedisLockExpirationSec)*time.Second)
	lockSuccess, err := resp.Result()
	if err != nil {
		lockFailErr := fmt.Errorf("[dao] redis lock SetNX fail, key: %v, err: %v", lockKey, err)
		r.Log.Error(lockFailErr)
		sentry.CaptureException(lockFailErr)
		return err
	}
	if !lockSuccess {
		lockFailErr := fmt.Errorf("[dao] redis lock SetNX fail, key: %v: %w", lockKey, ErrLockHeld)
		r.Log.Info(lockFailErr)
		return lockFailErr
	}

	return nil
}

func (r *Redis) UnLock(ctx context.Context, lockKey string) error {
	r.Log.Infof("[dao] redis unLock, will checkAndDel key, key: %v, value: %v", lockKey, model.RedisLockSecret)

	script := redis.NewScript(`
		if redis.call('get', KEYS[1]) == ARGV[1]
			then
				return redis.call('del', KEYS[1])
			else
				return 0
			end
		`)
	scriptResp, err := script.Run(ctx, r.RedisClient, []string{lockKey}, []interface{}{model.RedisLockSecret}).Int()
	if err != nil {
		unLockFailErr := fmt.Errorf("[dao] redis unLock checkAndDel key fail, key: %v, err: %v", lockKey, err)
		r.Log.Error(unLockFailErr)
		sentry.CaptureException(unLockFailErr)
		return err
	}
	if scriptResp == 0 {
		r.Log.Infof("[dao] redis unLock checkAndDel key fail, key: %v, result: %v", lockKey, scriptResp)
	}

	return nil
}

// LockWrap runs f while holding lockKey. A lock held elsewhere makes it return without running f.
func (r *Redis) LockWrap(ctx context.Context, lockKey string, f func() error) (err error) {
	if err = r.Lock(ctx, lockKey); err != nil {
		return
	}
	defer func() {
		if unLockErr := r.UnLock(ctx, lockKey); unLockErr != nil {
			err = unLockErr
		}
	}()

	if err = f(); err != nil {
		r.Log.Errorf("[redis] LockWrap f() return err: %v", err)
		return
	}

	return
}

func (r *Redis) Del(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.RedisClient.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		currErr := fmt.Errorf("[dao redis] Del pipe.Del err: %v, keys: %v", err, keys)
		r.Log.Error(currErr)
		sentry.CaptureException(currErr)
		return err
	}

	return nil
}
