package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/handler"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/session"
)

// WDHubPrefix is the legacy route prefix, served alongside the bare routes.
const WDHubPrefix = "/wd/hub"

const maxBodyBytes = 1 << 20

// Deps are the collaborators the routes dispatch to.
type Deps struct {
	Session     *session.Session
	Finder      handler.Finder
	Status      *handler.Status
	MaxInFlight int // Concurrent commands, default 4
}

type router struct {
	sess *session.Session
	sem  *semaphore.Weighted
}

// NewRouter builds the route table.
func NewRouter(d Deps) http.Handler {
	if d.MaxInFlight <= 0 {
		d.MaxInFlight = 4
	}
	if d.Status == nil {
		d.Status = &handler.Status{}
	}
	rt := &router{
		sess: d.Session,
		sem:  semaphore.NewWeighted(int64(d.MaxInFlight)),
	}

	routes := func(r chi.Router) {
		r.Get("/status", rt.serve(d.Status))
		r.Post("/session", rt.serve(&handler.NewSession{Session: d.Session}))
		r.Route("/session/{sessionId}", func(r chi.Router) {
			r.Get("/", rt.serve(&handler.GetSession{Session: d.Session}))
			r.Delete("/", rt.serve(&handler.DeleteSession{Session: d.Session}))
			r.Post("/element", rt.serve(&handler.FindElement{Session: d.Session, Finder: d.Finder}))
			r.Post("/elements", rt.serve(&handler.FindElements{Session: d.Session, Finder: d.Finder}))
			r.Get("/element/{id}/attribute/{name}", rt.serve(&handler.GetElementAttribute{Session: d.Session}))
			r.Get("/element/{id}/text", rt.serve(&handler.GetElementText{Session: d.Session}))
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(rt.accessLog)
	r.NotFound(rt.unknownCommand)
	r.MethodNotAllowed(rt.unknownCommand)

	routes(r)
	r.Route(WDHubPrefix, routes)
	return r
}

// serve adapts a command handler to HTTP. At most MaxInFlight commands run
// at once; the rest wait for a slot or for their client to go away.
func (rt *router) serve(h handler.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.sem.Acquire(r.Context(), 1); err != nil {
			logger.Debug("%s: request abandoned while queued: %v", h.Name(), err)
			return
		}
		defer rt.sem.Release(1)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeResponse(w, &handler.Response{
				SessionID: rt.sess.ID(),
				Status:    core.StatusInvalidArgument,
				Value:     fmt.Sprintf("read request body: %v", err),
			})
			return
		}
		req := handler.NewRequest(urlParams(r), body)
		writeResponse(w, handler.Safe(r.Context(), rt.sess, h, req))
	}
}

func (rt *router) unknownCommand(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, &handler.Response{
		SessionID: rt.sess.ID(),
		Status:    core.StatusUnknownCommand,
		Value:     fmt.Sprintf("unknown command: %s %s", r.Method, r.URL.Path),
	})
}

func (rt *router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s [%v] %d", r.Method, r.URL.Path, time.Since(start), ww.Status())
	})
}

func urlParams(r *http.Request) map[string]string {
	params := map[string]string{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params
	}
	for i, k := range rctx.URLParams.Keys {
		if k == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}

func writeResponse(w http.ResponseWriter, resp *handler.Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status.HTTPStatus())
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("write response: %v", err)
	}
}
