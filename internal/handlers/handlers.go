package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/Brownie44l1/birdid/internal/confidence"
	"github.com/Brownie44l1/birdid/internal/model"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const formField = "image"

var acceptedTypes = []string{"image/png", "image/jpeg"}

// Limits bound a single upload. MaxPixels is checked against the decoded
// header before any pixel data is allocated.
type Limits struct {
	MaxBytes  int64
	MaxPixels int64
}

type Handler struct {
	predictor  *model.Predictor
	loadErr    error
	thresholds confidence.Thresholds
	limits     Limits
	logger     *zap.Logger
}

// NewHandler serves predictions from predictor. When the model could not be
// loaded, predictor is nil and loadErr explains why; every prediction
// request is then refused with that message.
func NewHandler(predictor *model.Predictor, loadErr error, thresholds confidence.Thresholds, limits Limits, logger *zap.Logger) *Handler {
	if predictor == nil && loadErr == nil {
		loadErr = model.ErrArtifactMissing
	}
	return &Handler{
		predictor:  predictor,
		loadErr:    loadErr,
		thresholds: thresholds,
		limits:     limits,
		logger:     logger,
	}
}

type PredictionResponse struct {
	RequestID   string              `json:"request_id"`
	Class       string              `json:"class"`
	Confidence  float64             `json:"confidence"`
	Tier        confidence.Tier     `json:"tier"`
	Message     string              `json:"message"`
	Predictions map[string]float64  `json:"predictions"`
	Ranking     []model.Probability `json:"ranking"`
	Species     *species.Record     `json:"species,omitempty"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Guidance string `json:"guidance,omitempty"`
}

// ModelErrorMessage is the user-facing text for a failed model load.
func ModelErrorMessage(err error) string {
	if errors.Is(err, model.ErrArtifactMissing) {
		return "找不到模型檔案，請先訓練模型"
	}
	return fmt.Sprintf("載入模型時發生錯誤: %v", err)
}

const modelGuidance = "請先執行訓練程式或 Jupyter Notebook 來訓練模型"

func (h *Handler) Health(c *gin.Context) {
	if h.loadErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  ModelErrorMessage(h.loadErr),
		})
		return
	}

	a := h.predictor.Artifact()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"model": gin.H{
			"format":  a.Format,
			"digest":  a.Digest,
			"classes": a.Metadata.Classes,
		},
	})
}

func (h *Handler) Predict(c *gin.Context) {
	if !h.modelReady(c) {
		return
	}

	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	if expected := h.predictor.InputLen(); len(req.Image) != expected {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Expected %d values, got %d", expected, len(req.Image)),
		})
		return
	}

	result, err := h.predictor.PredictTensor(req.Image)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Prediction failed"})
		return
	}

	c.JSON(http.StatusOK, h.respond(result))
}

func (h *Handler) PredictFromImage(c *gin.Context) {
	if !h.modelReady(c) {
		return
	}

	u, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: uploadMessage(err)})
		return
	}

	result, err := h.predictor.Predict(u.image)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Prediction failed"})
		return
	}

	c.JSON(http.StatusOK, h.respond(result))
}

func (h *Handler) modelReady(c *gin.Context) bool {
	if h.loadErr == nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, errorResponse{
		Error:    ModelErrorMessage(h.loadErr),
		Guidance: modelGuidance,
	})
	return false
}

func (h *Handler) respond(result *model.PredictionResult) PredictionResponse {
	tier := h.thresholds.Classify(result.Confidence)
	resp := PredictionResponse{
		RequestID:   uuid.NewString(),
		Class:       result.Label.String(),
		Confidence:  result.Confidence,
		Tier:        tier,
		Message:     tier.Message(),
		Predictions: result.Map(),
		Ranking:     result.Ranked(),
	}
	if rec, ok := species.Lookup(result.Label); ok {
		resp.Species = &rec
	}

	h.logger.Info("prediction",
		zap.String("request_id", resp.RequestID),
		zap.String("class", resp.Class),
		zap.Float64("confidence", resp.Confidence),
		zap.String("tier", string(tier)))

	return resp
}

type upload struct {
	image    image.Image
	filename string
	format   string
}

var (
	errNoImage     = errors.New("no image file provided")
	errUnsupported = errors.New("unsupported image format")
	errTooLarge    = errors.New("image too large")
)

// uploadMessage is the text shown to the client for a rejected upload.
func uploadMessage(err error) string {
	switch {
	case errors.Is(err, errTooLarge):
		return "Image too large"
	case errors.Is(err, errUnsupported):
		return "Invalid image format. Supported: JPEG, PNG"
	default:
		return "No image file provided. Use 'image' as the form field name"
	}
}

func (h *Handler) readUpload(c *gin.Context) (*upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxBytes)

	header, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, errNoImage
	}

	file, err := header.Open()
	if err != nil {
		return nil, errNoImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errNoImage
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), acceptedTypes...) {
		return nil, errUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errUnsupported
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > h.limits.MaxPixels {
		h.logger.Debug("rejected image dimensions",
			zap.String("filename", header.Filename),
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height))
		return nil, fmt.Errorf("%w: %dx%d", errTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errUnsupported
	}

	h.logger.Debug("received image",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return &upload{image: img, filename: header.Filename, format: format}, nil
}
