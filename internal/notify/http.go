package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
)

// HTTPGateway talks to the notification-delivery service over HTTP. Each
// reminder id is a resource under /reminders: PUT creates or replaces it,
// DELETE removes it. Calls are not retried.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "notification_gateway"),
	}
}

type fireBody struct {
	Kind   domain.FireKind `json:"kind"`
	Hour   *int            `json:"hour,omitempty"`
	Minute *int            `json:"minute,omitempty"`
	Cron   string          `json:"cron,omitempty"`
	At     *time.Time      `json:"at,omitempty"`
}

type contentBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type scheduleBody struct {
	PlantID string      `json:"plant_id"`
	Fire    fireBody    `json:"fire"`
	Content contentBody `json:"content"`
}

func toFireBody(f domain.FireSpec) fireBody {
	if f.Kind == domain.FireDaily {
		h, m := f.Daily.Hour, f.Daily.Minute
		return fireBody{Kind: f.Kind, Hour: &h, Minute: &m, Cron: scheduler.CronExpr(f)}
	}
	at := f.At
	return fireBody{Kind: f.Kind, At: &at}
}

func (g *HTTPGateway) Schedule(ctx context.Context, req domain.ReminderRequest) error {
	payload, err := json.Marshal(scheduleBody{
		PlantID: req.PlantID,
		Fire:    toFireBody(req.Fire),
		Content: contentBody{Title: req.Content.Title, Body: req.Content.Body},
	})
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	status, err := g.do(ctx, http.MethodPut, g.reminderURL(req.ReminderID), payload)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: schedule returned status %d", domain.ErrGatewayUnavailable, status)
	}

	g.logger.DebugContext(ctx, "reminder registered", "reminder_id", req.ReminderID, "fire", req.Fire.String())
	return nil
}

// Cancel treats 404 as success: the slot is already empty.
func (g *HTTPGateway) Cancel(ctx context.Context, reminderID string) error {
	status, err := g.do(ctx, http.MethodDelete, g.reminderURL(reminderID), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: cancel returned status %d", domain.ErrGatewayUnavailable, status)
	}
	return nil
}

func (g *HTTPGateway) Ping(ctx context.Context) error {
	status, err := g.do(ctx, http.MethodGet, g.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: health returned status %d", domain.ErrGatewayUnavailable, status)
	}
	return nil
}

func (g *HTTPGateway) reminderURL(reminderID string) string {
	return g.baseURL + "/reminders/" + url.PathEscape(reminderID)
}

func (g *HTTPGateway) do(ctx context.Context, method, target string, body []byte) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused

	return resp.StatusCode, nil
}
