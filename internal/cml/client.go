package cml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
)

// Значения по умолчанию для клиента.
const (
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = 500 * time.Millisecond
	defaultPageSize   = 50
)

// errorResponse — тело ошибки CML API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client — HTTP-клиент для CML Jobs API (v2).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    uint
	retryDelay time.Duration
}

// Option — настройка клиента.
type Option func(*Client)

// WithHTTPClient задаёт свой http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries задаёт количество попыток для transient-ошибок.
func WithRetries(n uint) Option {
	return func(c *Client) { c.retries = n }
}

// WithRetryDelay задаёт начальную задержку между попытками.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient создаёт клиент CML API.
//
// baseURL — адрес workspace (https://ml.example.cloudera.site),
// apiKey — API v2 key, передаётся как Bearer token.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// --- Jobs ---

// ListJobs возвращает все jobs проекта, проходя по страницам.
func (c *Client) ListJobs(ctx context.Context, projectID string) ([]Job, error) {
	jobs := make([]Job, 0)
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("page_size", fmt.Sprintf("%d", defaultPageSize))
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		var page listJobsResponse
		path := "/api/v2/projects/" + projectID + "/jobs?" + params.Encode()
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}

		jobs = append(jobs, page.Jobs...)

		if page.NextPageToken == "" {
			return jobs, nil
		}
		pageToken = page.NextPageToken
	}
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(ctx context.Context, projectID, jobID string) (*Job, error) {
	var job Job
	path := "/api/v2/projects/" + projectID + "/jobs/" + jobID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob создаёт job в проекте.
func (c *Client) CreateJob(ctx context.Context, projectID string, req CreateJobRequest) (*Job, error) {
	var job Job
	path := "/api/v2/projects/" + projectID + "/jobs"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob частично обновляет job. ID job'а при этом не меняется,
// поэтому дочерние jobs не требуют перепривязки.
func (c *Client) UpdateJob(ctx context.Context, projectID, jobID string, req UpdateJobRequest) (*Job, error) {
	var job Job
	path := "/api/v2/projects/" + projectID + "/jobs/" + jobID
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob удаляет job из проекта.
func (c *Client) DeleteJob(ctx context.Context, projectID, jobID string) error {
	path := "/api/v2/projects/" + projectID + "/jobs/" + jobID
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// CreateJobRun запускает job вручную. Выполняет запуск platform,
// клиент только создаёт run.
func (c *Client) CreateJobRun(ctx context.Context, projectID, jobID string) (*JobRun, error) {
	var run JobRun
	path := "/api/v2/projects/" + projectID + "/jobs/" + jobID + "/runs"
	if err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// --- HTTP helpers ---

// doJSON выполняет запрос с retry и декодирует ответ в result.
//
// Повторяются только transient-ошибки: сетевые сбои, 429 и 5xx.
// Тело запроса сериализуется заново на каждую попытку.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	attempt := func() error {
		resp, err := c.do(ctx, method, path, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkError(resp); err != nil {
			return err
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			// Дочитываем тело, чтобы соединение вернулось в pool.
			io.Copy(io.Discard, resp.Body)
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			// Запрос уже выполнен workspace'ом: повтор после сбоя
			// декодирования продублировал бы create/update.
			return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return retry.Do(
		attempt,
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.Context(ctx),
	)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, retry.Unrecoverable(fmt.Errorf("marshal request: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		if er.Message != "" {
			apiErr.Message = er.Message
		} else {
			apiErr.Message = er.Error
		}
	}

	return apiErr
}

// isRetryable определяет, имеет ли смысл повторить запрос.
//
// Повторяются только ошибки, после которых запрос гарантированно
// не был выполнен или может быть выполнен заново: сбои транспорта
// и ответы 429/5xx. Ошибки сериализации и декодирования помечены
// как Unrecoverable при возникновении.
func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	// Осталась только доставка: сетевые ошибки и сбои транспорта.
	return true
}
