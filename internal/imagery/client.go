package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/logger"
)

// Client is the HTTP JSON implementation of Service.
type Client struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL *url.URL
	token   string
	now     func() time.Time // for tests
}

var _ Service = (*Client)(nil)

func New(logger *slog.Logger, client *http.Client, base, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse imagery url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("imagery url %q must be absolute", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		logger:  logger,
		client:  client,
		baseURL: u,
		token:   token,
		now:     time.Now,
	}, nil
}

func (c *Client) Count(ctx context.Context, f model.Filter) (int, error) {
	body := struct {
		Collection string            `json:"collection"`
		Predicates []model.Predicate `json:"predicates"`
	}{f.Collection, f.Predicates()}
	var out struct {
		Count *int `json:"count"`
	}
	params := map[string]any{"collection": f.Collection, "start_date": f.StartDate, "end_date": f.EndDate}
	if err := c.post(ctx, "count", "/v1/collections/count", body, &out, params); err != nil {
		return 0, err
	}
	if out.Count == nil || *out.Count < 0 {
		return 0, apperr.Remote("count", http.StatusOK, params, errors.New("response without a valid count"))
	}
	return *out.Count, nil
}

func (c *Client) Measure(ctx context.Context, ring model.Ring) (Measure, error) {
	body := struct {
		Geometry geom.Polygon `json:"geometry"`
	}{geom.PolygonOf(ring)}
	var out Measure
	if err := c.post(ctx, "measure", "/v1/geometry/measure", body, &out, map[string]any{"vertices": len(ring)}); err != nil {
		return Measure{}, err
	}
	return out, nil
}

func (c *Client) ReduceRegion(ctx context.Context, req ReduceRequest) (model.Stats, error) {
	var out struct {
		Stats model.Stats `json:"stats"`
	}
	params := map[string]any{"scale_m": req.ScaleM, "reducers": strings.Join(req.Reducers, ",")}
	if err := c.post(ctx, "reduce_region", "/v1/image/reduce", req, &out, params); err != nil {
		return nil, err
	}
	if out.Stats == nil {
		out.Stats = model.Stats{}
	}
	return out.Stats, nil
}

func (c *Client) TileURL(ctx context.Context, img Expr, vis VisParams) (string, error) {
	body := struct {
		Image Expr      `json:"image"`
		Vis   VisParams `json:"vis"`
	}{img, vis}
	var out struct {
		URLFormat string `json:"url_format"`
	}
	params := map[string]any{"min": vis.Min, "max": vis.Max}
	if err := c.post(ctx, "tiles", "/v1/image/tiles", body, &out, params); err != nil {
		return "", err
	}
	if out.URLFormat == "" {
		return "", apperr.Remote("tiles", http.StatusOK, params, errors.New("empty url_format"))
	}
	return out.URLFormat, nil
}

func (c *Client) ExportImage(ctx context.Context, req ImageExport) (model.ExportHandle, error) {
	params := map[string]any{"description": req.Description, "folder": req.Folder, "scale_m": req.ScaleM}
	return c.submit(ctx, "export_image", "/v1/export/image", req, req.Description, req.Folder, params)
}

func (c *Client) ExportTable(ctx context.Context, req TableExport) (model.ExportHandle, error) {
	params := map[string]any{"description": req.Description, "folder": req.Folder, "features": len(req.Collection.Features)}
	return c.submit(ctx, "export_table", "/v1/export/table", req, req.Description, req.Folder, params)
}

func (c *Client) DownloadURL(ctx context.Context, req TableDownload) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	params := map[string]any{"filename": req.Filename, "features": len(req.Collection.Features)}
	if err := c.post(ctx, "download_url", "/v1/table/download-url", req, &out, params); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", apperr.Remote("download_url", http.StatusOK, params, errors.New("empty url"))
	}
	return out.URL, nil
}

// submit starts a remote job and returns without waiting for it.
func (c *Client) submit(ctx context.Context, op, path string, body any, desc, folder string, params map[string]any) (model.ExportHandle, error) {
	var out struct {
		TaskID string `json:"task_id"`
		State  string `json:"state"`
	}
	if err := c.post(ctx, op, path, body, &out, params); err != nil {
		return model.ExportHandle{}, err
	}
	if out.TaskID == "" {
		return model.ExportHandle{}, apperr.Remote(op, http.StatusOK, params, errors.New("response without task_id"))
	}
	return model.ExportHandle{
		TaskID:      out.TaskID,
		Description: desc,
		Folder:      folder,
		State:       out.State,
		SubmittedAt: c.now().UTC(),
	}, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any, params map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Remote(op, 0, params, fmt.Errorf("encode request: %w", err))
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return apperr.Remote(op, 0, params, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveRemote(op, err, time.Since(start).Seconds())
		return apperr.Remote(op, 0, params, fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		rerr := remoteMessage(b)
		observability.ObserveRemote(op, rerr, time.Since(start).Seconds())
		c.logger.DebugContext(ctx, "imagery call failed", "op", op, "status", resp.StatusCode, "err", rerr)
		return apperr.Remote(op, resp.StatusCode, params, rerr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.ObserveRemote(op, err, time.Since(start).Seconds())
		return apperr.Remote(op, resp.StatusCode, params, fmt.Errorf("decode response: %w", err))
	}
	dur := time.Since(start)
	observability.ObserveRemote(op, nil, dur.Seconds())
	c.logger.DebugContext(ctx, "imagery call done", "op", op, "duration", dur)
	return nil
}

// remoteMessage extracts {"error": "..."} bodies, falling back to raw text.
func remoteMessage(b []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return errors.New(e.Error)
	}
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = "empty response body"
	}
	return errors.New(msg)
}
