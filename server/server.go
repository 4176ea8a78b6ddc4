package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"wikirag_web/config"
	"wikirag_web/render"
	"wikirag_web/wikirag"
)

// Asker answers one question. *wikirag.Client implements it.
type Asker interface {
	Ask(ctx context.Context, q wikirag.Query) (wikirag.Answer, error)
}

// ModelSource lists the models offered on the form.
type ModelSource interface {
	Models(ctx context.Context) []string
}

type Server struct {
	asker    Asker
	models   ModelSource
	renderer *render.Renderer
	defaults config.DefaultsConfig
	log      zerolog.Logger
}

func New(asker Asker, models ModelSource, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if asker == nil {
		return nil, errors.New("asker required")
	}
	if models == nil {
		return nil, errors.New("model source required")
	}
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	return &Server{
		asker:    asker,
		models:   models,
		renderer: renderer,
		defaults: cfg.Defaults,
		log:      log,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleForm)
	mux.HandleFunc("/styles.css", s.handleStyles)
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/healthz", s.handleHealth)
	return logMiddleware(s.log, mux)
}

// --- Handlers ---

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := render.FormPage{
		Models:       s.models.Models(r.Context()),
		DefaultModel: s.defaults.Model,
		DefaultPages: s.defaults.Pages,
	}
	var buf bytes.Buffer
	if err := s.renderer.Form(&buf, page); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render form")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, &buf)
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/css")
	_, _ = w.Write(s.renderer.Stylesheet())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "", "The form could not be read.")
		return
	}
	q := s.queryFromForm(r.PostForm)
	log := hlog.FromRequest(r)
	log.Info().Str("model", q.Model).Str("pages", q.Pages).Int("question_len", len(q.Question)).Msg("question received")

	ans, err := s.asker.Ask(r.Context(), q)
	if err != nil {
		status, msg := describeError(err)
		log.Error().Err(err).Int("status", status).Msg("wikirag request failed")
		s.renderError(w, r, status, q.Question, msg)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Result(&buf, q, ans); err != nil {
		log.Error().Err(err).Msg("render result")
		s.renderError(w, r, http.StatusInternalServerError, q.Question, "The answer could not be displayed.")
		return
	}
	writeHTML(w, http.StatusOK, &buf)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// --- Helpers ---

// queryFromForm fills model and page count from the configured defaults when
// the form leaves them out or blank.
func (s *Server) queryFromForm(form url.Values) wikirag.Query {
	q := wikirag.Query{
		Question: form.Get("question"),
		Model:    form.Get("model"),
		Pages:    form.Get("wikipages"),
	}
	if q.Model == "" {
		q.Model = s.defaults.Model
	}
	if q.Pages == "" {
		q.Pages = s.defaults.Pages
	}
	return q
}

func describeError(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The answer took too long and was abandoned."
	case errors.Is(err, wikirag.ErrSpawn):
		return http.StatusBadGateway, "The wikirag tool could not be started."
	case errors.Is(err, wikirag.ErrEncoding):
		return http.StatusBadGateway, "The wikirag tool returned output that is not valid text."
	default:
		return http.StatusBadGateway, "The wikirag tool failed to answer."
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, question, msg string) {
	page := render.ErrorPage{Status: status, Question: question, Message: msg}
	if id, ok := hlog.IDFromRequest(r); ok {
		page.RequestID = id.String()
	}
	var buf bytes.Buffer
	if err := s.renderer.Error(&buf, page); err != nil {
		http.Error(w, msg, status)
		return
	}
	writeHTML(w, status, &buf)
}

func writeHTML(w http.ResponseWriter, status int, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func logMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(next)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return hlog.NewHandler(log)(h)
}
