// Package client is the HTTP client for the occupancy API.  Server error
// bodies are turned back into apperrors values so callers can branch with
// errors.Is exactly as they would on the server side.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
)

// ErrUnauthorized is returned for 401 and 403 responses.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to one occupancy server.  Requests are never retried.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithToken sends token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// New returns a Client for the server at baseURL.
func New(baseURL string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		log: log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// Login exchanges admin credentials for a token and uses it for every
// following request.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/token", body, &out); err != nil {
		return err
	}
	c.http.SetAuthToken(out.Token)
	return nil
}

func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	var out []model.Student
	err := c.do(ctx, http.MethodGet, "/ziak/read", nil, &out)
	return out, err
}

func (c *Client) ListRooms(ctx context.Context) ([]model.Room, error) {
	var out []model.Room
	err := c.do(ctx, http.MethodGet, "/izba/read", nil, &out)
	return out, err
}

// InsertStudent creates a student and returns its id and the rooms whose
// counts changed.
func (c *Client) InsertStudent(ctx context.Context, in model.StudentInput) (model.MutationResult, error) {
	var out model.MutationResult
	err := c.do(ctx, http.MethodPost, "/ziak/insert", in.Fields(), &out)
	return out, err
}

func (c *Client) DeleteStudent(ctx context.Context, id uint64) (model.MutationResult, error) {
	var out model.MutationResult
	err := c.do(ctx, http.MethodDelete, "/ziak/delete", map[string]uint64{"id": id}, &out)
	return out, err
}

func (c *Client) UpdateStudentRoom(ctx context.Context, studentID, roomID uint64) (model.MutationResult, error) {
	var out model.MutationResult
	body := map[string]uint64{"studentId": studentID, "roomId": roomID}
	err := c.do(ctx, http.MethodPut, "/ziak/update-room", body, &out)
	return out, err
}

func (c *Client) UpdateStudent(ctx context.Context, id uint64, in model.StudentInput) (model.MutationResult, error) {
	var out model.MutationResult
	body := in.Fields()
	body["id_ziak"] = id
	err := c.do(ctx, http.MethodPut, "/ziak/update", body, &out)
	return out, err
}

// InsertRoom creates an empty room and returns its id.
func (c *Client) InsertRoom(ctx context.Context, in model.RoomInput) (uint64, error) {
	var out model.MutationResult
	body := map[string]int{"number": in.Number, "capacity": in.Capacity}
	err := c.do(ctx, http.MethodPost, "/izba/insert", body, &out)
	return out.ID, err
}

func (c *Client) DeleteRoom(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, "/izba/delete", map[string]uint64{"id": id}, nil)
}

// Roster downloads the XLSX occupancy roster.
func (c *Client) Roster(ctx context.Context) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetHeader("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet").
		Get("/izba/export")
	if err != nil {
		return nil, apperrors.Transient(fmt.Sprintf("GET /izba/export: %v", err))
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return resp.Body(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Warn("occupancy api unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.Transient(fmt.Sprintf("%s %s: %v", method, path, err))
	}
	if resp.IsError() {
		err := decodeError(resp)
		c.log.Debug("occupancy api rejected request",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode()), zap.Error(err))
		return err
	}
	return nil
}

// decodeError maps an error response to the matching apperrors value.
func decodeError(resp *resty.Response) error {
	eb, _ := resp.Error().(*errorBody)
	if eb == nil {
		eb = &errorBody{}
	}
	msg := eb.Message
	if msg == "" {
		msg = fmt.Sprintf("%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status())
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusBadRequest:
		verr := apperrors.NewValidationError()
		for k, v := range eb.Errors {
			verr.Add(k, v)
		}
		if verr.Empty() {
			verr.Add("body", msg)
		}
		return verr
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case status == http.StatusNotFound:
		return apperrors.NotFound(msg)
	case status == http.StatusConflict && eb.Error == "capacity_exceeded":
		return apperrors.Capacity(msg)
	case status == http.StatusConflict:
		return apperrors.Conflict(msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.Transient(msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
}
