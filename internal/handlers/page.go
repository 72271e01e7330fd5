package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/Brownie44l1/birdid/internal/model"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const pageTemplate = "index.html"

func parseTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
}

type pageData struct {
	Species     []string
	MaxUpload   string
	ModelError  string
	Guidance    string
	UploadError string
	Result      *resultView
}

type resultView struct {
	Filename   string
	Format     string
	Width      int
	Height     int
	Label      string
	Confidence string
	TierClass  string
	Message    string
	Bars       []barView
	Species    *species.Record
}

type barView struct {
	Label   string
	Percent string
	Width   float64
}

func (h *Handler) page() pageData {
	data := pageData{
		Species:     species.Names(),
		MaxUpload:   humanize.IBytes(uint64(h.limits.MaxBytes)),
	}
	if h.loadErr != nil {
		data.ModelError = ModelErrorMessage(h.loadErr)
		data.Guidance = modelGuidance
	}
	return data
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, pageTemplate, h.page())
}

// Upload handles the form post and renders the result on the same page.
func (h *Handler) Upload(c *gin.Context) {
	data := h.page()
	if h.loadErr != nil {
		c.HTML(http.StatusServiceUnavailable, pageTemplate, data)
		return
	}

	u, err := h.readUpload(c)
	if err != nil {
		data.UploadError = uploadMessage(err)
		c.HTML(http.StatusBadRequest, pageTemplate, data)
		return
	}

	result, err := h.predictor.Predict(u.image)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		data.UploadError = "Prediction failed"
		c.HTML(http.StatusInternalServerError, pageTemplate, data)
		return
	}

	data.Result = h.view(u, result)
	c.HTML(http.StatusOK, pageTemplate, data)
}

func (h *Handler) view(u *upload, result *model.PredictionResult) *resultView {
	tier := h.thresholds.Classify(result.Confidence)
	bounds := u.image.Bounds()

	v := &resultView{
		Filename:   u.filename,
		Format:     u.format,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Label:      result.Label.String(),
		Confidence: percent(result.Confidence),
		TierClass:  tier.CSSClass(),
		Message:    tier.Message(),
	}
	for _, p := range result.Ranked() {
		v.Bars = append(v.Bars, barView{
			Label:   p.Label.String(),
			Percent: percent(p.Value),
			Width:   p.Value * 100,
		})
	}
	if rec, ok := species.Lookup(result.Label); ok {
		v.Species = &rec
	}
	return v
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
