package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-nlp4/nlp4"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		root        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve measurements over HTTP",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "root",
				Usage:       "only open files under this directory over HTTP (default: the working directory)",
				Destination: &root,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s := settingsFrom(ctx)
			if s.config.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = s.config.ServerAddress
			}

			reg := newRegistry(s)
			defer reg.closeAll()
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = wd
			}
			if err := reg.setRoot(root); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			for _, path := range cmd.Args().Slice() {
				if _, err := reg.open(ctx, path); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			reg.register(e)

			s.log.Info("starting server", "address", addr, "root", reg.root, "measurements", reg.len())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

type entry struct {
	ID     string    `json:"id"`
	Path   string    `json:"path"`
	Opened time.Time `json:"opened"`
	Rows   int       `json:"rows"`
	State  string    `json:"state"`

	m *nlp4.Measurement
}

// errOutsideRoot rejects HTTP open requests for files outside the served root.
var errOutsideRoot = errors.New("path is outside the served root")

// registry holds the measurements opened by the server, keyed by a random ID.
type registry struct {
	settings *settings
	// root confines paths opened over HTTP; empty allows any path.
	root string

	mu    sync.RWMutex
	items map[string]*entry
}

func newRegistry(s *settings) *registry {
	return &registry{
		settings: s,
		items:    make(map[string]*entry),
	}
}

func (reg *registry) setRoot(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return fmt.Errorf("server root: %w", err)
	}
	reg.root = abs
	return nil
}

// confine resolves path against the root, following symlinks, and fails
// with errOutsideRoot when the result leaves it.
func (reg *registry) confine(path string) (string, error) {
	if reg.root == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(reg.root, path)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	rel, err := filepath.Rel(reg.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideRoot, path)
	}
	return path, nil
}

func (reg *registry) open(ctx context.Context, path string) (*entry, error) {
	m, err := nlp4.OpenContext(ctx, path, reg.settings.options(path, nil)...)
	if err != nil {
		return nil, err
	}
	e := &entry{
		ID:     uuid.NewString(),
		Path:   path,
		Opened: time.Now().UTC(),
		Rows:   m.Len(),
		State:  m.State().String(),
		m:      m,
	}

	reg.mu.Lock()
	reg.items[e.ID] = e
	reg.mu.Unlock()

	reg.settings.log.Info("measurement opened", "id", e.ID, "path", path, "rows", e.Rows)
	return e, nil
}

func (reg *registry) get(id string) (*entry, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.items[id]
	return e, ok
}

func (reg *registry) remove(id string) bool {
	reg.mu.Lock()
	e, ok := reg.items[id]
	delete(reg.items, id)
	reg.mu.Unlock()
	if ok {
		_ = e.m.Close()
	}
	return ok
}

func (reg *registry) list() []*entry {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*entry, 0, len(reg.items))
	for _, e := range reg.items {
		v := *e
		v.State = e.m.State().String()
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Opened.Equal(out[j].Opened) {
			return out[i].ID < out[j].ID
		}
		return out[i].Opened.Before(out[j].Opened)
	})
	return out
}

func (reg *registry) len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.items)
}

func (reg *registry) closeAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id, e := range reg.items {
		_ = e.m.Close()
		delete(reg.items, id)
	}
}

func (reg *registry) register(e *echo.Echo) {
	e.GET("/v1/measurements", reg.handleList)
	e.POST("/v1/measurements", reg.handleOpen)
	e.GET("/v1/measurements/:id", reg.handleGet)
	e.DELETE("/v1/measurements/:id", reg.handleDelete)
	e.GET("/v1/measurements/:id/frames/:row", reg.handleFrame)
}

type openRequest struct {
	Path string `json:"path"`
}

func (reg *registry) handleList(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{"measurements": reg.list()})
}

func (reg *registry) handleOpen(c *echo.Context) error {
	var req openRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Path == "" {
		return writeError(c, http.StatusBadRequest, "path is required")
	}

	path, err := reg.confine(req.Path)
	if err != nil {
		return writeError(c, http.StatusForbidden, err.Error())
	}
	e, err := reg.open(c.Request().Context(), path)
	if err != nil {
		var le *nlp4.LoadError
		if errors.As(err, &le) {
			return writeError(c, http.StatusUnprocessableEntity, err.Error())
		}
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	return writeJSON(c, http.StatusCreated, e)
}

func (reg *registry) handleGet(c *echo.Context) error {
	e, ok := reg.get(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "measurement not found")
	}
	limit := 0
	if q := c.QueryParam("frames"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return writeError(c, http.StatusBadRequest, "frames must be a non-negative integer")
		}
		limit = n
	}
	return writeJSON(c, http.StatusOK, newReport(e.m, e.Path, limit))
}

func (reg *registry) handleDelete(c *echo.Context) error {
	if !reg.remove(c.Param("id")) {
		return writeError(c, http.StatusNotFound, "measurement not found")
	}
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

func (reg *registry) handleFrame(c *echo.Context) error {
	e, ok := reg.get(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "measurement not found")
	}
	row, err := strconv.Atoi(strings.TrimSuffix(c.Param("row"), ".png"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "row must be an integer")
	}

	f, err := e.m.DecodeFrame(row)
	switch {
	case errors.Is(err, nlp4.ErrRowOutOfRange):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, nlp4.ErrClosed):
		return writeError(c, http.StatusGone, err.Error())
	case err != nil:
		return writeError(c, http.StatusUnprocessableEntity, err.Error())
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "image/png")
	res.WriteHeader(http.StatusOK)
	return png.Encode(res, f.Gray16())
}

func writeJSON(c *echo.Context, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	_, err = res.Write(data)
	return err
}

func writeError(c *echo.Context, status int, msg string) error {
	return writeJSON(c, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"status":  status,
		},
	})
}
