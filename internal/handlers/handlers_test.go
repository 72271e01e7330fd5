package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Brownie44l1/birdid/internal/confidence"
	"github.com/Brownie44l1/birdid/internal/model"
	"github.com/Brownie44l1/birdid/internal/model/mocks"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var defaultLimits = Limits{MaxBytes: 10 << 20, MaxPixels: 40_000_000}

func newTestRouter(t *testing.T, output []float32, limits Limits) *gin.Engine {
	t.Helper()
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any()).Return(output, nil).AnyTimes()

	artifact := &model.Artifact{
		Runner:   runner,
		Metadata: model.DefaultMetadata(),
		Format:   model.FormatLegacy,
		Digest:   "d1g3st",
	}
	predictor, err := model.NewPredictor(artifact, species.All())
	require.NoError(t, err)

	h := NewHandler(predictor, nil, confidence.Default(), limits, zap.NewNop())
	return NewRouter(h, "test")
}

func newUnavailableRouter(t *testing.T, loadErr error) *gin.Engine {
	t.Helper()
	h := NewHandler(nil, loadErr, confidence.Default(), defaultLimits, zap.NewNop())
	return NewRouter(h, "test")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 200})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(t, []float32{1, 0, 0}, defaultLimits), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)
	require.Contains(t, rec.Body.String(), "d1g3st")

	rec = serve(newUnavailableRouter(t, model.ErrArtifactMissing), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "找不到模型檔案")
}

func TestPredictFromImage(t *testing.T) {
	r := newTestRouter(t, []float32{0.1, 0.85, 0.05}, defaultLimits)

	rec := serve(r, uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 300, 200)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotEmpty(t, resp.RequestID)
	require.Equal(t, "家八哥", resp.Class)
	require.Equal(t, confidence.High, resp.Tier)
	require.Len(t, resp.Predictions, 3)
	require.InDelta(t, 0.85, resp.Confidence, 1e-6)
	require.NotNil(t, resp.Species)
	require.Equal(t, "Common Myna", resp.Species.CommonName)
	require.Contains(t, rec.Body.String(), `"ranking":[{"label":"家八哥"`)
}

func TestPredictFromImage_BadInput(t *testing.T) {
	r := newTestRouter(t, []float32{1, 0, 0}, defaultLimits)

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"wrong field", uploadRequest(t, "/predict/image", "file", "bird.png", pngBytes(t, 8, 8)), "No image file"},
		{"not an image", uploadRequest(t, "/predict/image", "image", "bird.png", []byte("hello world")), "Invalid image format"},
		{"truncated png", uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 8, 8)[:40]), "Invalid image format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestPredictFromImage_TooLarge(t *testing.T) {
	r := newTestRouter(t, []float32{1, 0, 0}, Limits{MaxBytes: 512, MaxPixels: 40_000_000})
	rec := serve(r, uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 200, 200)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Image too large")
}

func TestPredictFromImage_TooManyPixels(t *testing.T) {
	// A flat 8000x8000 PNG compresses to well under the byte limit.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8000, 8000))))
	require.Less(t, int64(buf.Len()), defaultLimits.MaxBytes)

	r := newTestRouter(t, []float32{1, 0, 0}, defaultLimits)
	rec := serve(r, uploadRequest(t, "/predict/image", "image", "flat.png", buf.Bytes()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Image too large")

	small := newTestRouter(t, []float32{1, 0, 0}, Limits{MaxBytes: 10 << 20, MaxPixels: 100})
	rec = serve(small, uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 11, 10)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Image too large")

	rec = serve(small, uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(small, uploadRequest(t, "/", "image", "bird.png", pngBytes(t, 20, 20)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Image too large")
}

func TestUploadPage_SizeLabel(t *testing.T) {
	rec := serve(newTestRouter(t, []float32{1, 0, 0}, defaultLimits), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, rec.Body.String(), "最大 10 MiB")

	rec = serve(newTestRouter(t, []float32{1, 0, 0}, Limits{MaxBytes: 512 << 10, MaxPixels: 100}), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, rec.Body.String(), "最大 512 KiB")
}

func TestPredict_RawTensor(t *testing.T) {
	r := newTestRouter(t, []float32{0.3, 0.3, 0.4}, defaultLimits)

	raw, err := json.Marshal(model.PredictionRequest{Image: make([]float32, model.InputSize*model.InputSize*3)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "林八哥", resp.Class)
	require.Equal(t, confidence.Low, resp.Tier)

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":[1,2,3]}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(r, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), fmt.Sprintf("Expected %d values, got 3", model.InputSize*model.InputSize*3))

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(r, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelUnavailable(t *testing.T) {
	r := newUnavailableRouter(t, fmt.Errorf("%w: tried models/bird_classifier", model.ErrArtifactMissing))

	rec := serve(r, uploadRequest(t, "/predict/image", "image", "bird.png", pngBytes(t, 8, 8)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "找不到模型檔案，請先訓練模型")
	require.Contains(t, rec.Body.String(), modelGuidance)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `id="model-error"`)
	require.NotContains(t, rec.Body.String(), "<form")

	corrupt := newUnavailableRouter(t, fmt.Errorf("%w: bad header", model.ErrArtifactCorrupt))
	rec = serve(corrupt, uploadRequest(t, "/", "image", "bird.png", pngBytes(t, 8, 8)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "載入模型時發生錯誤")
}

func TestUploadPage(t *testing.T) {
	r := newTestRouter(t, []float32{0.1, 0.85, 0.05}, defaultLimits)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<form")

	rec = serve(r, uploadRequest(t, "/", "image", "myna.png", pngBytes(t, 64, 48)))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "預測結果: 家八哥")
	require.Contains(t, body, "confidence-high")
	require.Contains(t, body, "85.00%")
	require.Contains(t, body, "Acridotheres tristis")
	require.Contains(t, body, "64 x 48")

	first := strings.Index(body, "家八哥: 85.00%")
	second := strings.Index(body, "白尾八哥: 10.00%")
	third := strings.Index(body, "林八哥: 5.00%")
	require.Positive(t, first)
	require.Less(t, first, second)
	require.Less(t, second, third)

	rec = serve(r, uploadRequest(t, "/", "image", "notes.txt", []byte("plain text")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `id="upload-error"`)
}

func TestModelErrorMessage(t *testing.T) {
	require.Equal(t, "找不到模型檔案，請先訓練模型", ModelErrorMessage(model.ErrArtifactMissing))
	require.True(t, strings.HasPrefix(ModelErrorMessage(model.ErrArtifactCorrupt), "載入模型時發生錯誤: "))
}
