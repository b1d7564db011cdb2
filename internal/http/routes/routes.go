package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	appmw "github.com/briangreenhill/cityexplorer/internal/http/middleware"
	"github.com/briangreenhill/cityexplorer/internal/providers"
	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Resolver is the cache orchestrator as seen by the handlers.
type Resolver interface {
	Resolve(ctx context.Context, kind records.Kind, q providers.Query) ([]records.Record, error)
	Locate(ctx context.Context, query string) (*records.Location, error)
}

type Server struct {
	Router   *chi.Mux
	Cache    Resolver
	validate *validator.Validate
}

type ServerOptions struct {
	Cache Resolver
	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
	// Logger receives one access line per request. The zero value discards.
	Logger zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appmw.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	r.Use(appmw.Metrics)

	s := &Server{Router: r, Cache: opts.Cache, validate: newValidator()}

	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Get("/", s.handleHome)
	r.Get("/location", s.handleLocation)
	r.Get("/weather", s.handleResource(records.KindWeather, true))
	r.Get("/events", s.handleResource(records.KindEvents, true))
	r.Get("/movies", s.handleResource(records.KindMovies, false))
	r.Get("/yelp", s.handleResource(records.KindYelp, false))

	return s
}

type searchParams struct {
	QueryData string `query:"queryData" validate:"required"`
}

type coordParams struct {
	QueryData string `query:"queryData" validate:"required"`
	Lat       string `query:"lat" validate:"required,latitude"`
	Long      string `query:"long" validate:"required,longitude"`
}

// newValidator reports fields by their query parameter names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})
	return v
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("THIS IS THE HOME STUB!")); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write home response")
	}
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	p := searchParams{QueryData: r.URL.Query().Get("queryData")}
	if err := s.validate.Struct(p); err != nil {
		s.badRequest(w, r, err)
		return
	}

	loc, err := s.Cache.Locate(r.Context(), p.QueryData)
	if err != nil {
		s.serverError(w, r, records.KindLocation, err)
		return
	}
	s.writeJSON(w, r, loc)
}

// handleResource serves one refreshable kind. Weather and events are looked
// up by coordinates, so they also require lat and long.
func (s *Server) handleResource(kind records.Kind, needsCoords bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		q := providers.Query{Key: values.Get("queryData")}

		var params any = searchParams{QueryData: q.Key}
		if needsCoords {
			q.Lat, q.Long = values.Get("lat"), values.Get("long")
			params = coordParams{QueryData: q.Key, Lat: q.Lat, Long: q.Long}
		}
		if err := s.validate.Struct(params); err != nil {
			s.badRequest(w, r, err)
			return
		}

		recs, err := s.Cache.Resolve(r.Context(), kind, q)
		if err != nil {
			s.serverError(w, r, kind, err)
			return
		}
		if recs == nil {
			recs = []records.Record{}
		}
		s.writeJSON(w, r, recs)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, kind records.Kind, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("kind", string(kind)).Msg("lookup failed")
	writeText(w, http.StatusInternalServerError, "Sorry something went wrong with "+string(kind)+"!")
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeText(w, http.StatusBadRequest, "invalid query parameters")
		return
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, "missing "+fe.Field())
		} else {
			msgs = append(msgs, "invalid "+fe.Field())
		}
	}
	hlog.FromRequest(r).Debug().Strs("problems", msgs).Msg("rejected query")
	writeText(w, http.StatusBadRequest, strings.Join(msgs, ", "))
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
