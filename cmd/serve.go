package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/pipeline"
	"github.com/sells-group/mne-enrich/internal/store"
	"github.com/sells-group/mne-enrich/internal/submission"
)

// maxBatch bounds the number of entities accepted per request.
const maxBatch = 500

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			batch: env.Pipeline,
			store: env.Store,
			topK:  cfg.NACE.TopK,
		}
		if env.Classifier != nil {
			api.classifier = env.Classifier
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// batchProcessor enriches a list of entities.
type batchProcessor interface {
	ProcessAll(ctx context.Context, source string, entities []model.Entity, obs pipeline.Observer) (*pipeline.BatchResult, error)
}

type apiServer struct {
	batch      batchProcessor
	classifier pipeline.Classifier // nil disables /v1/classify
	store      store.Store         // nil disables /v1/runs
	topK       int
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/entities/process", s.handleProcess)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/results", s.handleRunResults)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type classifyRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k,omitempty"`
}

type classifyResponse struct {
	Code string `json:"code"`
}

func (s *apiServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not configured")
		return
	}
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	code, err := s.classifier.Classify(r.Context(), req.Text, topK)
	if err != nil {
		zap.L().Warn("api: classify failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "classification failed")
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Code: code})
}

type processRequest struct {
	Entities []model.Entity `json:"entities"`
}

type processResponse struct {
	RunID      string                     `json:"run_id,omitempty"`
	Results    []model.EntityResult       `json:"results"`
	Discovery  []submission.DiscoveryRow  `json:"discovery"`
	Extraction []submission.ExtractionRow `json:"extraction"`
}

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, "entities is required")
		return
	}
	if len(req.Entities) > maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d entities per request", maxBatch))
		return
	}
	for _, e := range req.Entities {
		if e.ID <= 0 || e.Name == "" {
			writeError(w, http.StatusBadRequest, "every entity needs a positive id and a name")
			return
		}
	}

	batch, err := s.batch.ProcessAll(r.Context(), "api", req.Entities, nil)
	if err != nil {
		zap.L().Error("api: process failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, processResponse{
		RunID:      batch.RunID,
		Results:    batch.Results,
		Discovery:  submission.BuildDiscovery(batch.Results),
		Extraction: submission.BuildExtraction(batch.Results),
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handleRunResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	runID := chi.URLParam(r, "runID")
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	results, err := s.store.ListResults(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []model.EntityResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("api: store failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
