package config

import (
	"github.com/joho/godotenv"
	"github.com/koding/multiconfig"
)

type UTF struct {
	HTTPAddress string `required:"true" default:":8000"`
	SentryDsn   string `default:""`

	KafkaHosts  []string `default:"127.0.0.1:9092"`
	KafkaTopic  string   `default:"utf.forum.events"`
	EnableKafka bool     `default:"false"`

	DBDialect        string `default:"mysql"` // mysql, postgres or sqlite
	DBDsn            string `default:"root:pwd@tcp(127.0.0.1:3306)/utf?charset=utf8mb4&parseTime=True&loc=UTC&timeout=10s"`
	DBMaxIdleConns   int    `default:"2"`
	DBMaxOpenConns   int    `default:"4"`
	Debug            bool   `default:"false"`
	Migrate          bool   `default:"false"`
	ExecuteMigration bool   `default:"false"`

	EnableCron    bool   `default:"true"`
	ReconcileCron string `default:"0 30 4 * * *"`

	RedisDsn               []string `default:"127.0.0.1:6379"`
	RedisPassword          string   `default:""`
	RedisPrefix            string   `default:"utfSvc"`
	RedisLockExpirationSec int      `default:"120"`
	CountCacheTTLSec       int      `default:"43200"` // 12h

	// Frozen serves the read-only archive edition: no posts, no votes, display_* counters.
	Frozen    bool   `default:"false"`
	ForumName string `default:"UTF"`

	PostsPerPage    int `default:"15"`
	MaxPostsPerPage int `default:"250"`
	TopicsPerPage   int `default:"50"`
	MembersPerPage  int `default:"50"`
	MaxGroupPerPage int `default:"250"`
	PostRetries     int `default:"3"`

	SearchPerPage    int `default:"15"`
	MaxSearchPerPage int `default:"75"`
	SearchCharLimit  int `default:"200"`
}

var Cfg = &UTF{}

func init() {
	// defaults only, so packages and tests see sane values without flags or env
	if err := (&multiconfig.TagLoader{}).Load(Cfg); err != nil {
		panic(err)
	}
}

// Load reads .env (when present), environment variables and flags on top of the defaults.
func Load() {
	_ = godotenv.Load()
	multiconfig.New().MustLoad(Cfg)
}
