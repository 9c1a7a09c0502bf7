package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jinzhu/now"
	"github.com/sirupsen/logrus"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/publisher"
)

type Service struct {
	Log *logrus.Entry
	Pub publisher.Publisher
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

var Instance *Service

func (service *Service) now() time.Time {
	if service.Clock != nil {
		return service.Clock().UTC()
	}
	return time.Now().UTC()
}

// instant resolves the time machine parameter: nil is the present.
func (service *Service) instant(asOf *time.Time) time.Time {
	if asOf == nil {
		return service.now()
	}
	return asOf.UTC()
}

func frozen() bool {
	return config.Cfg.Frozen
}

// report logs and forwards unexpected errors to sentry. Domain outcomes pass through silently.
func (service *Service) report(op string, err error) error {
	var internalErr *common.InternalError
	if errors.As(err, &internalErr) {
		return err
	}
	currErr := fmt.Errorf("[service] %s err: %v", op, err)
	service.Log.Error(currErr)
	sentry.CaptureException(currErr)
	return err
}

// ParseAsOf reads the date query parameter. Empty or invalid values mean the present (nil);
// a bare date means midnight UTC.
func ParseAsOf(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}
	t, err := now.ParseInLocation(time.UTC, s)
	if err != nil || t.Year() < 1970 {
		return nil
	}
	t = t.UTC()
	return &t
}
