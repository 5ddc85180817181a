package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Brownie44l1/smartseva-api/internal/model"
	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
	"github.com/Brownie44l1/smartseva-api/internal/repository"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type Classifier interface {
	ClassifyImage(ctx context.Context, data []byte) (*triage.Result, error)
	ClassifyTensor(ctx context.Context, tensor *preprocess.Tensor) (*triage.Result, error)
}

type Publisher interface {
	Publish(v any) error
}

type ModelStatus interface {
	Loaded() bool
}

type Options struct {
	Params         preprocess.Params
	UploadDir      string
	MaxUploadBytes int64
}

type Handler struct {
	classifier Classifier
	complaints repository.ComplaintRepository
	publisher  Publisher
	status     ModelStatus
	opts       Options
	logger     *slog.Logger
}

// NewHandler wires the HTTP surface. publisher may be nil.
func NewHandler(classifier Classifier, complaints repository.ComplaintRepository, publisher Publisher,
	status ModelStatus, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		complaints: complaints,
		publisher:  publisher,
		status:     status,
		opts:       opts,
		logger:     logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": h.status.Loaded(),
	})
}

// Predict classifies a tensor that the client already preprocessed.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := h.opts.Params.Len()
	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	tensor := &preprocess.Tensor{Data: req.Image, Shape: h.opts.Params.Shape()}
	result, err := h.classifier.ClassifyTensor(r.Context(), tensor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		http.Error(w, "Unsupported file type. Supported: jpg, jpeg, png", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	h.logger.Info("received image", "filename", header.Filename, "size", len(data))

	result, err := h.classifier.ClassifyImage(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	complaint := &repository.Complaint{
		ID:        uuid.New().String(),
		Filename:  header.Filename,
		Result:    *result,
		CreatedAt: time.Now().UTC(),
	}

	storedPath, err := h.store(complaint.ID+ext, data)
	if err != nil {
		h.logger.Error("failed to store upload", "err", err)
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	complaint.StoredPath = storedPath

	if err := h.complaints.Insert(complaint); err != nil {
		h.logger.Error("failed to record complaint", "err", err)
		if rmErr := os.Remove(storedPath); rmErr != nil {
			h.logger.Warn("failed to remove orphaned upload", "path", storedPath, "err", rmErr)
		}
		http.Error(w, "Failed to record complaint", http.StatusInternalServerError)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(complaint); err != nil {
			h.logger.Warn("failed to publish complaint", "id", complaint.ID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, complaint)
}

func (h *Handler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	complaints, err := h.complaints.List(limit)
	if err != nil {
		h.logger.Error("failed to list complaints", "err", err)
		http.Error(w, "Failed to list complaints", http.StatusInternalServerError)
		return
	}
	if complaints == nil {
		complaints = []repository.Complaint{}
	}

	writeJSON(w, http.StatusOK, complaints)
}

func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	complaint, err := h.complaints.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get complaint", "id", id, "err", err)
		http.Error(w, "Failed to get complaint", http.StatusInternalServerError)
		return
	}
	if complaint == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, complaint)
}

func (h *Handler) store(name string, data []byte) (string, error) {
	if err := os.MkdirAll(h.opts.UploadDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(h.opts.UploadDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		decodeErr   *preprocess.DecodeError
		unavailable *model.ModelUnavailableError
		shapeErr    *triage.ScoreShapeError
	)

	switch {
	case errors.As(err, &decodeErr):
		h.logger.Info("rejected undecodable image", "err", err)
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
	case errors.Is(err, model.ErrInputSize):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &unavailable):
		h.logger.Error("model unavailable", "err", err)
		http.Error(w, "Model unavailable, try again later", http.StatusServiceUnavailable)
	case errors.As(err, &shapeErr):
		h.logger.Error("model returned unexpected scores", "err", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
	default:
		h.logger.Error("prediction error", "err", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
