// Package publicip определяет внешний адрес процесса для журнала аудита.
package publicip

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// Unknown — значение-заглушка, когда адрес определить не удалось.
const Unknown = "unknown"

var defaultEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://ipinfo.io/ip",
}

// Client опрашивает список внешних сервисов и возвращает первый успешный ответ.
type Client struct {
	endpoints  []string
	httpClient *http.Client
}

// NewClient создаёт клиент со стандартным списком сервисов.
func NewClient() *Client {
	return NewClientWithEndpoints(defaultEndpoints)
}

// NewClientWithEndpoints создаёт клиент с заданным списком сервисов.
func NewClientWithEndpoints(endpoints []string) *Client {
	return &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Lookup возвращает внешний адрес либо Unknown. Любой сбой деградирует
// до заглушки: поиск адреса никогда не мешает основной операции.
func (c *Client) Lookup(ctx context.Context) string {
	if c == nil {
		return Unknown
	}

	for _, endpoint := range c.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			continue
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}

		if ip := strings.TrimSpace(string(body)); ip != "" {
			return ip
		}
	}

	return Unknown
}
