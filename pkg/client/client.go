// Package client is a typed HTTP client for the AgroLogiX API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agrologix/agrologix-backend/internal/models"
)

// APIError is a non-2xx response. Unwrap returns the lifecycle sentinel that
// matches Code, so callers can use errors.Is(err, models.ErrInvalidTransition).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "NotFound":
		return models.ErrNotFound
	case "NotAuthorized":
		return models.ErrNotAuthorized
	case "InvalidTransition":
		return models.ErrInvalidTransition
	case "VehicleUnavailable":
		return models.ErrVehicleUnavailable
	case "ValidationError":
		return models.ErrValidation
	}
	return nil
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for the API mounted at baseURL, e.g.
// http://localhost:8080/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string { return c.token }

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token string `json:"token"`
	User  struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Email    string          `json:"email"`
		Phone    string          `json:"phone"`
		UserType models.UserType `json:"userType"`
	} `json:"user"`
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) Register(ctx context.Context, name, email, password, phone string, role models.UserType) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"phone":    phone,
		"userType": string(role),
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// BookingRequest is the farmer's booking form.
type BookingRequest struct {
	VehicleID    string  `json:"vehicleId"`
	ProductName  string  `json:"productName"`
	Quantity     float64 `json:"quantity"`
	Source       string  `json:"source"`
	Destination  string  `json:"destination"`
	DeliveryDate string  `json:"deliveryDate"`
}

func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bookings lists the caller's bookings as seen by role, optionally limited to
// statuses.
func (c *Client) Bookings(ctx context.Context, role models.UserType, statuses ...models.BookingStatus) ([]models.Booking, error) {
	path := "/bookings/farmer"
	if role == models.UserTypeProvider {
		path = "/bookings/provider"
	}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		path += "?status=" + url.QueryEscape(strings.Join(parts, ","))
	}

	var out []models.Booking
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a booking to target.
func (c *Client) Transition(ctx context.Context, bookingID string, target models.BookingStatus) (*models.Booking, error) {
	var out models.Booking
	body := map[string]string{"status": string(target)}
	if err := c.do(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(bookingID)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AvailableVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles/mine", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateVehicle(ctx context.Context, in models.VehicleInput) (*models.Vehicle, error) {
	var out models.Vehicle
	if err := c.do(ctx, http.MethodPost, "/vehicles", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetVehicleMaintenance(ctx context.Context, vehicleID string, inMaintenance bool) (*models.Vehicle, error) {
	var out models.Vehicle
	body := map[string]bool{"inMaintenance": inMaintenance}
	if err := c.do(ctx, http.MethodPut, "/vehicles/"+url.PathEscape(vehicleID)+"/maintenance", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, vehicleID string) error {
	return c.do(ctx, http.MethodDelete, "/vehicles/"+url.PathEscape(vehicleID), nil, nil)
}

// WebSocketURL returns the hint channel URL with the token as a query
// parameter, since browsers cannot set headers on a websocket upgrade.
func (c *Client) WebSocketURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsUnauthenticated reports whether err is a 401 from the API.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
