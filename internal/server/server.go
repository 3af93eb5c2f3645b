package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/bgg"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/nraw/gamescanner/pkg/storage"
)

//go:embed web
var WebFS embed.FS

const shutdownTimeout = 5 * time.Second

type Server struct {
	Service  *resolve.Service
	DB       *storage.DB
	BGG      *bgg.Client
	Username string
	Password string
}

func New(service *resolve.Service, db *storage.DB, bggClient *bgg.Client, user, pass string) *Server {
	return &Server{
		Service:  service,
		DB:       db,
		BGG:      bggClient,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/resolve", s.basicAuth(s.handleResolve))
	mux.HandleFunc("POST /api/resolve", s.basicAuth(s.handleResolve))
	mux.HandleFunc("GET /api/mappings", s.basicAuth(s.handleMappings))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/plays", s.basicAuth(s.handleListPlays))
	mux.HandleFunc("POST /api/plays", s.basicAuth(s.handleLogPlay))
	mux.HandleFunc("POST /api/wishlist", s.basicAuth(s.handleWishlist))
	mux.HandleFunc("GET /api/games", s.basicAuth(s.handleGames))

	webRoot, err := fs.Sub(WebFS, "web")
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServer(http.FS(webRoot))
	mux.Handle("GET /", s.basicAuth(fileServer.ServeHTTP))

	return mux, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		utils.Log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
