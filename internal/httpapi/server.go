// Package httpapi is the HTTP presentation shell over the pipeline orchestrator.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	imageFormField   = "image"
	maxUploadBytes   = 20 << 20
	audioContentType = "audio/wav"
)

// Pipeline is the orchestrator surface the handlers use.
type Pipeline interface {
	LoadImage(ctx context.Context, data []byte) pipeline.Outcome
	SelectVoice(name string) error
	Summarize(ctx context.Context) pipeline.Outcome
	CancelSynthesis() bool
	Snapshot() pipeline.Session
	Voices() []core.Voice
}

// Server holds the handlers.
type Server struct {
	pipeline Pipeline
	log      *logger.Logger
}

// NewServer creates the HTTP shell.
func NewServer(pipe Pipeline, log *logger.Logger) *Server {
	return &Server{pipeline: pipe, log: log}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = maxUploadBytes

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/image", s.uploadImage)
	v1.PUT("/voice", s.selectVoice)
	v1.GET("/voices", s.listVoices)
	v1.POST("/summarize", s.summarize)
	v1.DELETE("/synthesis", s.cancelSynthesis)
	v1.GET("/session", s.session)
	v1.GET("/audio", s.audio)

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile(imageFormField)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("missing '%s' file: %v", imageFormField, err)})

		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to open upload: %v", err)})

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to read upload: %v", err)})

		return
	}

	s.log.Info("Received image '%s' (%d bytes)", header.Filename, len(data))

	s.respondOutcome(c, s.pipeline.LoadImage(c.Request.Context(), data))
}

type voiceRequest struct {
	Voice string `json:"voice" binding:"required"`
}

func (s *Server) selectVoice(c *gin.Context) {
	var req voiceRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	err = s.pipeline.SelectVoice(req.Voice)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, newSessionResponse(s.pipeline.Snapshot()))
}

func (s *Server) listVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"voices":   s.pipeline.Voices(),
		"selected": s.pipeline.Snapshot().Voice,
	})
}

func (s *Server) summarize(c *gin.Context) {
	s.respondOutcome(c, s.pipeline.Summarize(c.Request.Context()))
}

func (s *Server) cancelSynthesis(c *gin.Context) {
	if !s.pipeline.CancelSynthesis() {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no synthesis is running"})

		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) session(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(s.pipeline.Snapshot()))
}

func (s *Server) audio(c *gin.Context) {
	artifact := s.pipeline.Snapshot().Artifact
	if artifact == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no audio has been generated"})

		return
	}

	c.Header("Content-Type", audioContentType)
	c.File(artifact.Path)
}

func (s *Server) respondOutcome(c *gin.Context, outcome pipeline.Outcome) {
	c.JSON(statusFor(outcome), newOutcomeResponse(outcome))
}

// statusFor maps an outcome to an HTTP status.
func statusFor(outcome pipeline.Outcome) int {
	switch {
	case !outcome.Failed():
		return http.StatusOK
	case errors.Is(outcome.Err, core.ErrNotReady):
		return http.StatusConflict
	case outcome.Stage == pipeline.StageUpload, outcome.Stage == pipeline.StageDetect:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
