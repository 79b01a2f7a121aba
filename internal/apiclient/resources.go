package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Center is an educational center.
type Center struct {
	ID          int64    `json:"id"`
	Name        string   `json:"nombre"`
	Address     string   `json:"direccion"`
	Latitude    *float64 `json:"latitud,omitempty"`
	Longitude   *float64 `json:"longitud,omitempty"`
	Responsible string   `json:"responsable,omitempty"`
}

// Tree is a monitored tree.
type Tree struct {
	ID       int64   `json:"id"`
	Name     string  `json:"nombre"`
	Species  string  `json:"especie"`
	Location string  `json:"ubicacionEspecifica,omitempty"`
	Center   *Center `json:"centroEducativo,omitempty"`
}

// User is an account as listed by the API.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"nombre"`
	Email  string `json:"email"`
	Role   string `json:"rol"`
	Active bool   `json:"activo"`
}

// Reading is one sensor sample of a tree.
type Reading struct {
	ID            int64    `json:"id"`
	Timestamp     string   `json:"timestamp"`
	Temperature   float64  `json:"temperatura"`
	AirHumidity   float64  `json:"humedadAmbiente"`
	SoilHumidity  float64  `json:"humedadSuelo"`
	CO2           *float64 `json:"co2,omitempty"`
	TrunkDiameter *float64 `json:"diametroTronco,omitempty"`
}

// ReadingPage is one page of readings, newest first.
type ReadingPage struct {
	Content       []Reading `json:"content"`
	TotalElements int64     `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Number        int       `json:"number"`
	Size          int       `json:"size"`
}

// ListCenters returns every center.
func (c *Client) ListCenters(ctx context.Context) ([]Center, error) {
	var out []Center
	if err := c.do(ctx, http.MethodGet, "/centros", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCenter returns a single center.
func (c *Client) GetCenter(ctx context.Context, id int64) (*Center, error) {
	var out Center
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/centros/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTreesByCenter returns the trees planted at a center.
func (c *Client) ListTreesByCenter(ctx context.Context, centerID int64) ([]Tree, error) {
	var out []Tree
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/arboles/centro/%d", centerID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTree removes a tree together with its readings.
func (c *Client) DeleteTree(ctx context.Context, treeID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/arboles/%d", treeID), nil, nil, nil)
}

// ListUsers returns every account.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/usuarios", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignUserToCenter links a user to a center.
func (c *Client) AssignUserToCenter(ctx context.Context, userID, centerID int64) error {
	body := map[string]int64{"usuarioId": userID, "centroId": centerID}
	return c.do(ctx, http.MethodPost, "/usuario-centro", nil, body, nil)
}

// ListReadings returns a page of a tree's readings, newest first.
func (c *Client) ListReadings(ctx context.Context, treeID int64, page, size int) (*ReadingPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	var out ReadingPage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/lecturas/arbol/%d", treeID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
