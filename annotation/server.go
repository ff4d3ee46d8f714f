package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/russross/blackfriday/v2"
	log "github.com/sirupsen/logrus"

	"github.com/lewtec/refcocos/internal/domain"
)

type saveRequest struct {
	ImageID    *json.Number       `json:"image_id"`
	Annotation *domain.Annotation `json:"annotation"`
}

type deleteRequest struct {
	ImageID      *json.Number `json:"image_id"`
	AnnotationID *string      `json:"annotation_id"`
}

// statusFor maps the error taxonomy to HTTP status codes
func statusFor(err error) int {
	var loadErr *domain.LoadError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

func (a *AnnotatorApp) GetHTTPHandler() http.Handler {
	if a.Config.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), HTTPLogger())

	router.GET("/", a.handleIndex)

	api := router.Group("/api")
	api.GET("/image/:index", a.handleGetImage)
	api.POST("/save_reference", a.handleSave)
	api.POST("/save", a.handleSave)
	api.POST("/delete_annotation", a.handleDelete)
	api.GET("/saved_data", a.handleSavedData)
	api.GET("/last_saved_index", a.handleLastSavedIndex)
	api.GET("/first_unsaved_index", a.handleFirstUnsavedIndex)
	api.GET("/reload", a.handleReload)
	api.GET("/image_status", a.handleImageStatus)

	log.Printf("http: candidates: %s", a.Config.Data.Candidates)
	log.Printf("http: output: %s", a.Config.Data.Output)
	return router
}

func (a *AnnotatorApp) handleGetImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	ret, err := a.GetImage(index)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			c.JSON(status, gin.H{"error": "Image not found"})
			return
		}
		log.Warnf("http: while loading image %d: %s", index, err)
		c.JSON(status, gin.H{"error": fmt.Sprintf("Failed to load image: %s", err)})
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (a *AnnotatorApp) handleSave(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageID == nil || req.Annotation == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid data"})
		return
	}
	imageID, err := req.ImageID.Int64()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid data"})
		return
	}
	saved, err := a.Save(int(imageID), *req.Annotation)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "message": fmt.Sprintf("Failed to save annotation: %s", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Annotation saved successfully", "annotation": saved})
}

func (a *AnnotatorApp) handleDelete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageID == nil || req.AnnotationID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid data"})
		return
	}
	imageID, err := req.ImageID.Int64()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid data"})
		return
	}
	err = a.Delete(int(imageID), *req.AnnotationID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Annotation not found"})
		return
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "message": fmt.Sprintf("Failed to delete annotation: %s", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Annotation deleted successfully"})
}

func (a *AnnotatorApp) handleSavedData(c *gin.Context) {
	ret, err := a.SavedData()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (a *AnnotatorApp) handleLastSavedIndex(c *gin.Context) {
	index, err := a.LastSavedIndex()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index})
}

func (a *AnnotatorApp) handleFirstUnsavedIndex(c *gin.Context) {
	index, err := a.FirstUnsavedIndex()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index})
}

func (a *AnnotatorApp) handleReload(c *gin.Context) {
	message, err := a.Reload()
	if err != nil {
		log.Warnf("http: reload failed: %s", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fmt.Sprintf("Failed to load data: %s", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func (a *AnnotatorApp) handleImageStatus(c *gin.Context) {
	status, err := a.Status()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data loaded"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *AnnotatorApp) handleIndex(c *gin.Context) {
	var markdownBuilder strings.Builder
	fmt.Fprintf(&markdownBuilder, "# RefCOCOS annotator\n")
	fmt.Fprintf(&markdownBuilder, "> %s\n\n", strings.ReplaceAll(stringOr(strings.TrimSpace(a.Config.Meta.Description), "(No description provided)"), "\n", "\n>"))

	summary, err := a.Summary()
	if err != nil {
		fmt.Fprintf(&markdownBuilder, "**No data loaded:** %s\n\n", err)
		fmt.Fprintf(&markdownBuilder, "[Reload](/api/reload)\n")
	} else {
		fmt.Fprintf(&markdownBuilder, "## Progress\n\n")
		fmt.Fprintf(&markdownBuilder, "- Images: %d\n", summary.TotalImages)
		fmt.Fprintf(&markdownBuilder, "- Images with annotations: %d\n", summary.SavedImages)
		fmt.Fprintf(&markdownBuilder, "- Annotations: %d (%d empty cases)\n", summary.Annotations, summary.EmptyCases)
		fmt.Fprintf(&markdownBuilder, "- Resume at: [%d](/api/image/%d)\n", summary.LastSavedIndex, summary.LastSavedIndex)
		fmt.Fprintf(&markdownBuilder, "- First unsaved: [%d](/api/image/%d)\n\n", summary.FirstUnsavedIndex, summary.FirstUnsavedIndex)
		if len(summary.Categories) > 0 {
			fmt.Fprintf(&markdownBuilder, "## Categories\n\n%s\n\n", strings.Join(summary.Categories, ", "))
		}
		fmt.Fprintf(&markdownBuilder, "[Image status](/api/image_status) [Saved data](/api/saved_data) [Reload](/api/reload)\n")
	}

	var page strings.Builder
	fmt.Fprintf(&page, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>RefCOCOS annotator</title></head><body>\n")
	page.Write(blackfriday.Run([]byte(markdownBuilder.String())))
	fmt.Fprintf(&page, "</body></html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page.String()))
}
