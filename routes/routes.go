package routes

// routes/routes.go
// HTTP routing setup for the certification registry API.

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/justinas/alice"

	"github.com/xellDart/ERC721-IP/handler"
	"github.com/xellDart/ERC721-IP/service"
)

const (
	requestIDHeader = "X-Request-Id"
	maxBodyBytes    = 1 << 20
)

// SetupRoutes wires all HTTP endpoints.
func SetupRoutes(reg *service.Registry) http.Handler {
	srv := handler.New(reg)

	r := chi.NewRouter()
	r.Route("/ipp/v1", func(r chi.Router) {
		r.Post("/recover", srv.Recover)
		r.Post("/digest", srv.Digest)
		r.Post("/hash", srv.SigningHash)
		r.Post("/mint", srv.Mint)
		r.Get("/certificates/{digest}", srv.Certificate)
		r.Get("/owners/{digest}", srv.OwnerOf)
		r.Get("/balances/{address}", srv.BalanceOf)
		r.Get("/symbol", srv.Symbol)
		r.Get("/domain", srv.Domain)
		r.Get("/stats", srv.Stats)
	})

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	chain := alice.New(requestID, logRequest, middleware.Recoverer, limitBody)
	return chain.Then(r)
}

// requestID propagates the caller's X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// logRequest logs basic request information.
func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		glog.V(1).Infof("%s %s %d %s id=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start), r.Header.Get(requestIDHeader))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
