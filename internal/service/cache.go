// cache.go — LRU-кэш ответов внешних источников с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Кэш влияет только на повторные обращения к сети в пределах TTL;
// на содержимое хранилища он не влияет никак — каждая запись всё
// равно проходит полный путь integrity/classify/validate.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш внешних ответов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша внешних ответов.",
	})
)

// CacheService — LRU-кэш ответов внешних источников.
// Ключ — детерминированный идентификатор запроса
// (например, "zenodo:10.5281/zenodo.16292189").
type CacheService struct {
	cache *expirable.LRU[string, []byte]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	return &CacheService{
		cache: expirable.NewLRU[string, []byte](maxSize, nil, ttl),
	}
}

// Get возвращает закэшированный ответ по ключу запроса.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(key string) ([]byte, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет ответ в кэше.
func (c *CacheService) Set(key string, data []byte) {
	c.cache.Add(key, data)
}

// Len возвращает текущее количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
