package cachesvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
)

// New returns the report cache configured by conf.Cache.
func New(conf *core.Config) (curriculum.ReportCache, error) {
	if conf.Cache.TTL <= 0 {
		return NoCache{}, nil
	}
	switch conf.Cache.Backend {
	case core.CacheRedis:
		c, err := NewRedisCache(conf)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		return c, nil
	default:
		return NewMemoryCache(conf.Cache.TTL), nil
	}
}
