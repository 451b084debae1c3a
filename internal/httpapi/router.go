package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/query"
	"github.com/zyrak/simdoc/internal/submit"
)

// Server holds every handle the HTTP layer needs. It owns no state of its
// own beyond these references.
type Server struct {
	submitter *submit.Submitter
	query     *query.API
	store     docstore.Store
	queue     jobqueue.Queue

	apiPrefix   string
	corsOrigins []string
}

// New builds a Server. apiPrefix and corsOrigins come straight from
// config.Config (API_V1_PREFIX, CORS_ORIGINS).
func New(submitter *submit.Submitter, q *query.API, store docstore.Store, queue jobqueue.Queue, apiPrefix, corsOrigins string) *Server {
	origins := strings.Split(corsOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return &Server{submitter: submitter, query: q, store: store, queue: queue, apiPrefix: apiPrefix, corsOrigins: origins}
}

// Router assembles the chi router, matching the teacher's middleware stack
// in cmd/api/main.go (RequestID, RealIP, Logger, Recoverer, Timeout).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.cors)

	r.Get("/system/health", s.health)

	prefix := s.apiPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	r.Route(prefix, func(r chi.Router) {
		r.Route("/articles", func(r chi.Router) {
			r.Post("/", s.submitArticle)
			r.Post("/recheck", s.recheckArticles)
			r.Get("/{id}", s.getArticle)
			r.Get("/{id}/similar", s.getSimilar)
		})
		r.Route("/clusters", func(r chi.Router) {
			r.Get("/", s.searchArticles)
			r.Get("/stats", s.clusterStats)
			r.Get("/{id}", s.getCluster)
		})
		r.Get("/system/health", s.health)
	})

	return r
}

// cors applies CORS_ORIGINS the way the original's FastAPI CORSMiddleware
// does: allow-all methods/headers, origin list from config (§10).
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.allowOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) bool {
	for _, o := range s.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
