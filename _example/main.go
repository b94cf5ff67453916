package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	matomo "github.com/jkbrsn/go-matomo"
)

func main() {
	tracker, err := matomo.New(
		"https://analytics.example.org/matomo.php",
		1,
		matomo.WithExcludePaths("/health"),
		matomo.WithExcludePatterns(`^/static/`),
		matomo.WithIgnoredMethods(http.MethodOptions),
		matomo.WithRouteDetails(map[string]map[string]any{
			"/": {"action_name": "Landing"},
		}),
		matomo.WithStatsCadence(time.Minute),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating tracking middleware")
	}
	defer tracker.Close()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracker.Wrap)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		// Measure a sub-operation and attach custom variables to this
		// request's tracking payload.
		if state := matomo.StateFromContext(r.Context()); state != nil {
			defer matomo.StartTimer(state, "pf_srv").Stop()
			state.SetCustomVar("plan", "free")
		}
		time.Sleep(25 * time.Millisecond) // pretend to work
		w.Write([]byte("hello\n"))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Addr: ":8080", Handler: r}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	_ = srv.Close()
}
