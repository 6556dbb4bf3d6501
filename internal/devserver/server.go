// Package devserver is an in-memory implementation of the bullet journal HTTP API.
//
// It keeps each project's tasks and notes as whole nested trees, answers every collection
// read with an ETag and rejects writes whose If-Match no longer matches with 412. It is used
// by `bulletjournal serve` for local work and by the client tests over httptest.
package devserver

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"bulletjournal-cli/internal/model"
)

type project struct {
	meta      model.Project
	parent    int64
	tasks     []model.Task
	notes     []model.Note
	completed []model.Task // newest first
}

type revision struct {
	model.Revision
	text string
}

type content struct {
	model.Content
	revisions []revision
}

type Server struct {
	mu sync.Mutex

	log   *log.Logger
	token string
	user  model.User
	now   func() time.Time

	nextID      int64
	order       []int64 // owned top-level project order
	projects    map[int64]*project
	shared      []model.ProjectsWithOwner
	contents    map[int64][]content
	sharedUsers map[int64][]model.User
	links       map[int64][]model.SharableLink
}

type Option func(*Server)

// WithToken makes the server require "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func WithUser(name string) Option {
	return func(s *Server) { s.user = model.User{Name: name} }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{
		log:         logger,
		user:        model.User{Name: "me"},
		now:         time.Now,
		projects:    map[int64]*project{},
		contents:    map[int64][]content{},
		sharedUsers: map[int64][]model.User{},
		links:       map[int64][]model.SharableLink{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns an echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(s.auth())
	s.Register(e)
	return e
}

// Register wires up all API routes on the provided Echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/api/projects", s.getProjects)
	e.PUT("/api/projects", s.putProjects)
	e.POST("/api/updateSharedProjectsOrder", s.updateSharedProjectsOrder)

	e.GET("/api/projects/:id/tasks", s.getTasks)
	e.PUT("/api/projects/:id/tasks", s.putTasks)
	e.POST("/api/projects/:id/tasks", s.createTask)
	e.POST("/api/projects/:id/tasks/delete", s.deleteTasks)
	e.POST("/api/projects/:id/tasks/complete", s.completeTasks)
	e.GET("/api/projects/:id/completedTasks", s.getCompletedTasks)

	e.GET("/api/tasks/:id", s.getTask)
	e.PATCH("/api/tasks/:id", s.patchTask)
	e.DELETE("/api/tasks/:id", s.deleteTask)
	e.POST("/api/tasks/:id/setStatus", s.setStatus)
	e.PUT("/api/tasks/:id/setLabels", s.setLabels)
	e.POST("/api/tasks/:id/complete", s.completeTask)
	e.POST("/api/tasks/:id/move", s.moveTask)
	e.POST("/api/tasks/:id/share", s.shareTask)
	e.GET("/api/tasks/:id/sharables", s.getSharables)
	e.POST("/api/tasks/:id/revokeSharable", s.revokeSharable)

	e.GET("/api/completedTasks/:id", s.getCompletedTask)
	e.DELETE("/api/completedTasks/:id", s.deleteCompletedTask)
	e.POST("/api/completedTasks/:id/uncomplete", s.uncompleteTask)
	e.GET("/api/completedTasks/:id/contents", s.getContents)

	e.GET("/api/tasks/:id/contents", s.getContents)
	e.POST("/api/tasks/:id/addContent", s.addContent)
	e.PATCH("/api/tasks/:id/contents/:cid", s.updateContent)
	e.DELETE("/api/tasks/:id/contents/:cid", s.deleteContent)
	e.GET("/api/tasks/:id/contents/:cid/revisions/:rid", s.getRevision)

	e.GET("/api/projects/:id/notes", s.getNotes)
	e.PUT("/api/projects/:id/notes", s.putNotes)

	e.GET("/api/projectItems", s.getProjectItems)
	e.GET("/api/items", s.getItemsByLabels)
	e.GET("/api/recentItems", s.getRecentItems)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			s.log.WithFields(log.Fields{
				"method":    req.Method,
				"path":      req.URL.Path,
				"status":    c.Response().Status,
				"requestId": req.Header.Get("X-Request-Id"),
				"elapsed":   time.Since(start).String(),
			}).Debug("request")
			return nil
		}
	}
}

func (s *Server) auth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.token == "" {
				return next(c)
			}
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.TrimPrefix(h, "Bearer ") != s.token || !strings.HasPrefix(h, "Bearer ") {
				return c.String(http.StatusUnauthorized, "invalid token")
			}
			return next(c)
		}
	}
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

// etag hashes the JSON form of v. Equal collections always produce the same tag.
func etag(v any) string {
	b, err := sonic.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(b)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// decode reads a JSON request body into v.
func decode(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// checkIfMatch rejects a write made against a revision other than current.
// A request without If-Match is accepted.
func checkIfMatch(c echo.Context, current string) error {
	want := c.Request().Header.Get("If-Match")
	if want == "" || want == current {
		return nil
	}
	return echo.NewHTTPError(http.StatusPreconditionFailed, "revision mismatch")
}

func withETag(c echo.Context, tag string, code int, v any) error {
	c.Response().Header().Set("ETag", tag)
	return c.JSON(code, v)
}

func notFound(kind string, id int64) error {
	return echo.NewHTTPError(http.StatusNotFound, kind+" not found: "+strconv.FormatInt(id, 10))
}

func (s *Server) projectFor(c echo.Context) (*project, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	return p, nil
}
