// Package api is the administrative HTTP surface over the DVR engine:
// entry listing, creation, update, cancel and delete, plus the rule
// registries. Authentication happens outside; the server receives a
// resolver that maps a request to an already-verified actor.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/dvrd/internal/access"
	"github.com/ManuGH/dvrd/internal/dvr"
	"github.com/ManuGH/dvrd/internal/log"
)

// ActorFunc resolves the request's principal.
type ActorFunc func(r *http.Request) access.Actor

// Server serves the DVR admin API.
type Server struct {
	eng   *dvr.Engine
	rules *dvr.Rules
	actor ActorFunc
	logc  zerolog.Logger
}

// NewServer builds the API server. A nil actor resolver denies everything.
func NewServer(eng *dvr.Engine, rules *dvr.Rules, actor ActorFunc) *Server {
	if actor == nil {
		actor = func(*http.Request) access.Actor { return access.Actor{} }
	}
	return &Server{
		eng:   eng,
		rules: rules,
		actor: actor,
		logc:  log.WithComponent("api"),
	}
}

// Handler builds the routed handler with rate limiting and tracing attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Route("/api/dvr", func(r chi.Router) {
		r.Get("/entries", s.listEntries)
		r.Post("/entries", s.createEntry)
		r.Get("/entries/{uuid}", s.getEntry)
		r.Put("/entries/{uuid}", s.updateEntry)
		r.Post("/entries/{uuid}/cancel", s.cancelEntry)
		r.Delete("/entries/{uuid}", s.deleteEntry)

		r.Get("/autorecs", s.listAutorecs)
		r.Get("/timerecs", s.listTimerecs)
	})
	return otelhttp.NewHandler(r, "dvrd-api")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logc.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dvr.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, access.ErrDenied):
		s.writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, dvr.ErrInvalidEntry):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entry"})
	case errors.Is(err, dvr.ErrDuplicateEntry):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate entry"})
	default:
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	if err := access.Verify(s.actor(r), access.Admin|access.Recorder); err != nil {
		s.writeError(w, err)
		return
	}
	entries := s.eng.List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		props := s.eng.Props(e)
		props["uuid"] = e.UUID
		out = append(out, props)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	if err := access.Verify(s.actor(r), access.Admin|access.Recorder); err != nil {
		s.writeError(w, err)
		return
	}
	e := s.eng.FindByID(chi.URLParam(r, "uuid"))
	if e == nil {
		s.writeError(w, dvr.ErrNotFound)
		return
	}
	props := s.eng.Props(e)
	props["uuid"] = e.UUID
	s.writeJSON(w, http.StatusOK, props)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(r)
	if err := access.Verify(actor, access.Admin|access.Recorder); err != nil {
		s.writeError(w, err)
		return
	}
	var conf map[string]any
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		s.writeError(w, dvr.ErrInvalidEntry)
		return
	}
	if _, ok := conf["owner"]; !ok {
		conf["owner"] = actor.Name
	}
	if _, ok := conf["creator"]; !ok {
		conf["creator"] = actor.Name
	}
	e, err := s.eng.Create("", conf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	props := s.eng.Props(e)
	props["uuid"] = e.UUID
	s.writeJSON(w, http.StatusCreated, props)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	var conf map[string]any
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		s.writeError(w, dvr.ErrInvalidEntry)
		return
	}
	e, err := s.eng.Update(s.actor(r), chi.URLParam(r, "uuid"), conf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	props := s.eng.Props(e)
	props["uuid"] = e.UUID
	s.writeJSON(w, http.StatusOK, props)
}

func (s *Server) canTouch(r *http.Request, uuid string) error {
	e := s.eng.FindByID(uuid)
	if e == nil {
		return dvr.ErrNotFound
	}
	if !access.CanModify(s.actor(r), e.Owner) {
		return access.ErrDenied
	}
	return nil
}

func (s *Server) cancelEntry(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	if err := s.canTouch(r, uuid); err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.eng.Cancel(uuid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if e == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
		return
	}
	props := s.eng.Props(e)
	props["uuid"] = e.UUID
	s.writeJSON(w, http.StatusOK, props)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	if err := s.canTouch(r, uuid); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.eng.CancelDelete(uuid); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

func (s *Server) listAutorecs(w http.ResponseWriter, r *http.Request) {
	if err := access.Verify(s.actor(r), access.Admin); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.rulesSnapshot().Autorecs)
}

func (s *Server) listTimerecs(w http.ResponseWriter, r *http.Request) {
	if err := access.Verify(s.actor(r), access.Admin); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.rulesSnapshot().Timerecs)
}

type rulesSnapshot struct {
	Autorecs []*dvr.AutorecRule `json:"autorecs"`
	Timerecs []*dvr.TimerecRule `json:"timerecs"`
}

func (s *Server) rulesSnapshot() rulesSnapshot {
	return rulesSnapshot{
		Autorecs: s.rules.Autorecs(),
		Timerecs: s.rules.Timerecs(),
	}
}
