// Пакет fetch — клиенты получения payload от внешних источников.
//
// Все клиенты offline-first: при наличии локального входного файла
// сеть не используется вовсе. Сетевые запросы детерминированы —
// фиксированный набор параметров, никакого вывода URL из данных.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrUnavailable — payload недоступен: сетевой сбой, не-2xx ответ
// или отсутствующий локальный файл. Ингест прерывается без записи.
var ErrUnavailable = errors.New("payload недоступен")

// Prometheus-метрики внешних запросов.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_fetch_requests_total",
		Help: "Общее количество запросов к внешним источникам.",
	}, []string{"source"})
	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_fetch_failures_total",
		Help: "Общее количество неудачных запросов к внешним источникам.",
	}, []string{"source"})
)

// newHTTPClient создаёт HTTP-клиент с таймаутом из конфигурации
// (IM_FETCH_TIMEOUT) и пулом idle-соединений.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
		},
	}
}

// doGet выполняет GET-запрос и возвращает тело ответа.
// Любой сбой транспорта и любой не-2xx статус — ErrUnavailable.
func doGet(ctx context.Context, client *http.Client, source, reqURL string) ([]byte, error) {
	fetchRequestsTotal.WithLabelValues(source).Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к %s: %w", reqURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		fetchFailuresTotal.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("%w: запрос к %s: %v", ErrUnavailable, reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fetchFailuresTotal.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("%w: %s вернул статус %d", ErrUnavailable, reqURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fetchFailuresTotal.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("%w: чтение ответа %s: %v", ErrUnavailable, reqURL, err)
	}

	return data, nil
}
