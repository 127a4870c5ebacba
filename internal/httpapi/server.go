package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocrd/internal/gpu"
	"ocrd/internal/manager"
	"ocrd/internal/render"
	"ocrd/internal/session"
	"ocrd/internal/uploads"
	"ocrd/pkg/types"
)

// ChunkSource is one streaming generation as seen by the HTTP layer.
type ChunkSource interface {
	ID() string
	Next(ctx context.Context) (string, bool)
	Close()
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Status() types.StatusResponse
	Cancel() manager.CancelStatus
	ProcessOnce(ctx context.Context, req manager.GenerationRequest) (string, error)
	Stream(ctx context.Context, req manager.GenerationRequest) (ChunkSource, error)
}

type managerService struct{ *manager.Manager }

func (s managerService) Stream(ctx context.Context, req manager.GenerationRequest) (ChunkSource, error) {
	cs, err := s.Manager.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// FromManager adapts a Manager to Service.
func FromManager(m *manager.Manager) Service { return managerService{m} }

// Deps are the collaborators behind the non-generation endpoints.
// A nil Sessions or Uploads makes the corresponding endpoints answer 503.
type Deps struct {
	Sessions session.Store
	Uploads  *uploads.Store
	GPU      *gpu.Probe
	Renderer *render.Renderer
	// Features is shown on the index page (build tags, backend).
	Features map[string]bool
	Now      func() time.Time
}

type api struct {
	svc  Service
	deps Deps
}

// NewMux builds the HTTP router.
func NewMux(svc Service, deps Deps) http.Handler {
	if deps.Renderer == nil {
		deps.Renderer = render.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &api{svc: svc, deps: deps}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods:   orDefault(corsAllowedMethods, []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders:   orDefault(corsAllowedHeaders, []string{"Accept", "Content-Type", "X-Log-Level"}),
			ExposedHeaders:   []string{"X-Filename", "X-File-Id", "X-Generation-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", a.index)
	r.Handle("/static/*", staticHandler())

	// Streaming /ocr must not sit behind the compressor, which buffers.
	r.Post("/ocr", a.ocr)

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))
		r.Post("/cancel", a.cancel)
		r.Get("/gpu", a.gpu)
		r.Post("/render", a.render)
		r.Post("/save", a.save)
		r.Get("/history", a.history)
		r.Delete("/session/{id}", a.deleteSession)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
