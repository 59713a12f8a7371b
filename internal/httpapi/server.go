package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"segd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Predict(ctx context.Context, req types.PredictRequest) (types.PredictResponse, error)
	BoxSegment(ctx context.Context, req types.BoxSegmentRequest) (types.BoxSegmentResponse, error)
	AutoSegment(ctx context.Context, req types.AutoSegmentRequest) (types.AutoSegmentResponse, error)
	AutoSegmentAdaptive(ctx context.Context, req types.AutoSegmentRequest) (types.AdaptiveSegmentResponse, error)
	ComputeEmbedding(ctx context.Context, req types.ComputeEmbeddingRequest) (types.ComputeEmbeddingResponse, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/", handleIndex)
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/predict", serveOp("predict", svc.Predict))
		r.Post("/box_segment", serveOp("box_segment", svc.BoxSegment))
		r.Post("/auto_segment", serveOp("auto_segment", svc.AutoSegment))
		r.Post("/auto_segment_adaptive", serveOp("auto_segment_adaptive", svc.AutoSegmentAdaptive))
		r.Post("/compute_embedding", serveOp("compute_embedding", svc.ComputeEmbedding))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return opts
}

// handleIndex godoc
// @Summary      Liveness banner
// @Tags         meta
// @Produce      json
// @Success      200 {object} types.IndexResponse
// @Router       / [get]
func handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.IndexResponse{Message: "SAM2 Server is running"})
}

// statusClientClosed is logged when the client or server went away before
// a response could be written.
const statusClientClosed = 499

// serveOp decodes a JSON request, runs op under the joined request and
// server context, and writes the JSON result or a mapped error.
func serveOp[Req, Resp any](name string, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			observeOp(name, http.StatusUnsupportedMediaType, start)
			return
		}
		// Limit body size (configurable, default 1MiB)
		body := &countingReader{ReadCloser: http.MaxBytesReader(w, r.Body, maxBodyBytes)}
		r.Body = body
		var req Req
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			status, msg := http.StatusBadRequest, "invalid JSON body"
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				status, msg = http.StatusRequestEntityTooLarge, "request body too large"
			}
			writeJSONError(w, status, msg)
			observeOp(name, status, start)
			return
		}
		opRequestBytes.WithLabelValues(name).Observe(float64(body.n))

		lvl := requestLogLevel(r)
		logStart(r, lvl, name, req)

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if requestTimeout > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, requestTimeout)
			defer cancelTimeout()
		}

		resp, err := op(ctx, req)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				observeOp(name, statusClientClosed, start)
				logEnd(r, lvl, name, statusClientClosed, start, err)
				return
			}
			status := statusForError(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure(reasonQueue)
				w.Header().Set("Retry-After", "1")
			}
			msg := err.Error()
			if status == http.StatusGatewayTimeout {
				msg = "request timed out"
			}
			writeJSONError(w, status, msg)
			observeOp(name, status, start)
			logEnd(r, lvl, name, status, start, err)
			return
		}
		writeJSON(w, resp)
		observeOp(name, http.StatusOK, start)
		logEnd(r, lvl, name, http.StatusOK, start, nil)
	}
}
