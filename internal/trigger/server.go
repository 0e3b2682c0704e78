package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flowmentor/internal/extract"
	"flowmentor/internal/logging"
	"flowmentor/internal/task"
)

// Server exposes triggers over HTTP so a browser companion or a shell script
// can fire actions the way a context-menu click does.
type Server struct {
	trigger *Trigger
	addr    string
}

// NewServer returns a server listening on addr once started.
func NewServer(t *Trigger, addr string) *Server {
	return &Server{trigger: t, addr: addr}
}

type fireRequest struct {
	TabID     string `json:"tab_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Selection string `json:"selection,omitempty"`
}

type fireResponse struct {
	Action     task.Action `json:"action"`
	Kind       task.Kind   `json:"kind"`
	Restricted bool        `json:"restricted,omitempty"`
	PageKind   string      `json:"page_kind,omitempty"`
}

type actionView struct {
	Action      task.Action `json:"action"`
	Kind        task.Kind   `json:"kind"`
	Title       string      `json:"title"`
	PanelButton bool        `json:"panel_button,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/actions", s.listActions)
	r.Post("/triggers/{action}", s.fire)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Trigger("Trigger server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) listActions(w http.ResponseWriter, _ *http.Request) {
	specs := task.Actions()
	out := make([]actionView, 0, len(specs))
	for _, spec := range specs {
		out = append(out, actionView{Action: spec.Action, Kind: spec.Kind, Title: spec.Title, PanelButton: spec.PanelButton})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) fire(w http.ResponseWriter, r *http.Request) {
	action := task.Action(chi.URLParam(r, "action"))
	if _, err := task.LookupAction(action); err != nil {
		writeErr(w, http.StatusNotFound, "unknown_action", err.Error())
		return
	}

	var body fireRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	d, err := s.trigger.Fire(r.Context(), Request{
		Action:    action,
		Tab:       extract.Tab{ID: body.TabID, URL: body.URL},
		Selection: body.Selection,
	})
	switch {
	case errors.Is(err, ErrNoSelection):
		writeErr(w, http.StatusUnprocessableEntity, "no_selection", err.Error())
		return
	case err != nil:
		logging.Get(logging.CategoryTrigger).Error("Fire %s: %v", action, err)
		writeErr(w, http.StatusInternalServerError, "fire_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, fireResponse{
		Action:     action,
		Kind:       d.Kind,
		Restricted: d.Restricted,
		PageKind:   string(d.PageKind),
	})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Get(logging.CategoryTrigger).Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, map[string]apiError{"error": {Code: errCode, Message: message}})
}
