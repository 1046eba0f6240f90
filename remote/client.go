// Package remote is the HTTP client for the workspace API. It owns the
// wire concerns: JSON codec, idempotency keys on mutating requests,
// error classification, and normalization of the legacy assignee
// sentinel at the boundary.
package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collabhive-sync/domain"
)

const errorBodyMaxSize = 64 * 1024 // 64 KiB

// Client talks to one workspace: a single project and its document
// share the project id.
type Client struct {
	base      string
	projectID string
	hc        *http.Client
	logger    *log.Logger
	tracer    trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger enables debug-level request logging.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API at baseURL (including the /api
// prefix) scoped to the given project.
func New(baseURL, projectID string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		hc:        &http.Client{Timeout: 30 * time.Second},
		tracer:    otel.Tracer("collabhive-sync/remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Project fetches the active project record.
func (c *Client) Project(ctx context.Context) (domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, "project.get", http.MethodGet, "/projects/"+c.projectID, nil, &p)
	return p, err
}

// UpdateProject replaces the project's title and description.
func (c *Client) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	var out domain.Project
	err := c.do(ctx, "project.update", http.MethodPut, "/projects/"+c.projectID, p, &out)
	return out, err
}

// Members lists the team.
func (c *Client) Members(ctx context.Context) ([]domain.Member, error) {
	var members []domain.Member
	err := c.do(ctx, "members.list", http.MethodGet, "/members", nil, &members)
	return members, err
}

// AddMember creates a member; the server assigns the id when absent.
func (c *Client) AddMember(ctx context.Context, m domain.Member) (domain.Member, error) {
	var out domain.Member
	err := c.do(ctx, "members.add", http.MethodPost, "/members", m, &out)
	return out, err
}

// RemoveMember deletes a member by id.
func (c *Client) RemoveMember(ctx context.Context, id string) error {
	return c.do(ctx, "members.remove", http.MethodDelete, "/members/"+id, nil, nil)
}

// Tasks lists all tasks. Assignee values arrive in the canonical form.
func (c *Client) Tasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, "tasks.list", http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Assignee = domain.NormalizeAssignee(tasks[i].Assignee)
	}
	return tasks, nil
}

// AddTask creates a task; the server assigns the id.
func (c *Client) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.Assignee = domain.NormalizeAssignee(t.Assignee)
	var out domain.Task
	err := c.do(ctx, "tasks.add", http.MethodPost, "/tasks", t, &out)
	if err != nil {
		return domain.Task{}, err
	}
	out.Assignee = domain.NormalizeAssignee(out.Assignee)
	return out, nil
}

type statusUpdate struct {
	Status domain.TaskStatus `json:"status"`
}

// UpdateTaskStatus moves a task to the given status.
func (c *Client) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, "tasks.status", http.MethodPut, "/tasks/"+id, statusUpdate{Status: status}, &out)
	return out, err
}

// Document fetches the project's shared document.
func (c *Client) Document(ctx context.Context) (domain.Document, error) {
	var d domain.Document
	err := c.do(ctx, "document.get", http.MethodGet, "/documents/"+c.projectID, nil, &d)
	return d, err
}

type documentUpdate struct {
	Notes string `json:"notes"`
	Code  string `json:"code"`
}

// SaveDocument replaces both blobs of the document. They are always
// sent together.
func (c *Client) SaveDocument(ctx context.Context, d domain.Document) (domain.Document, error) {
	var out domain.Document
	err := c.do(ctx, "document.save", http.MethodPut, "/documents/"+c.projectID,
		documentUpdate{Notes: d.Notes, Code: d.Code}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if c.logger != nil {
			fields := log.Fields{
				"op":       op,
				"method":   method,
				"path":     path,
				"total_ms": float64(time.Since(start)) / float64(time.Millisecond),
			}
			if err != nil {
				fields["error"] = err.Error()
			}
			c.logger.WithFields(fields).Debug("remote.request")
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, merr := sonic.Marshal(body)
		if merr != nil {
			return &NetworkError{Op: op, Err: merr}
		}
		reader = bytes.NewReader(payload)
	}

	req, rerr := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if rerr != nil {
		return &NetworkError{Op: op, Err: rerr}
	}
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, derr := c.hc.Do(req)
	if derr != nil {
		return &NetworkError{Op: op, Err: derr}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if derr := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); derr != nil {
		return &NetworkError{Op: op, Err: derr}
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// classify maps a non-2xx response to the error taxonomy, preferring
// the server's own message when the body carries one.
func classify(op string, resp *http.Response) error {
	var msg string
	data, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxSize))
	if err == nil && len(data) > 0 {
		var body errorBody
		if uerr := sonic.Unmarshal(data, &body); uerr == nil {
			msg = body.Error
		}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Op: op, Message: msg}
	case http.StatusConflict:
		return &ConflictError{Op: op, Message: msg}
	}
	return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
