// Package api provides the REST API server for melodygen
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/export"
	"github.com/james-see/melodygen/pkg/harmony"
	"github.com/james-see/melodygen/pkg/melody"
	"github.com/james-see/melodygen/pkg/rhythm"
	"github.com/james-see/melodygen/pkg/theory"
)

// @title melodygen API
// @version 1.0
// @description API for generating melodies over harmonic-rhythm driven chord progressions
// @host localhost:8080
// @BasePath /api/v1

// Options configures the router.
type Options struct {
	// Defaults fills the fields a compose request leaves out. Nil uses
	// composer.DefaultParams.
	Defaults *composer.Params

	// Logger receives request logs. Nil uses slog.Default.
	Logger *slog.Logger

	// Sentry enables the Sentry middleware. sentry.Init must have been called.
	Sentry bool
}

type server struct {
	studio   *composer.Studio
	defaults composer.Params
	logger   *slog.Logger
}

// NewRouter builds the gin engine serving the API
func NewRouter(studio *composer.Studio, opts Options) *gin.Engine {
	if studio == nil {
		studio = composer.NewStudio(nil)
	}
	s := &server{studio: studio, defaults: composer.DefaultParams(), logger: opts.Logger}
	if opts.Defaults != nil {
		s.defaults = *opts.Defaults
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Sentry {
		r.Use(SentryMiddleware())
	}
	r.Use(RequestTracking(s.logger))
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/options", s.listOptions)
		v1.GET("/presets", s.listPresets)
		v1.POST("/compose", s.handleCompose)
		v1.POST("/compose/midi", s.handleComposeMIDI)
		v1.GET("/compositions/current", s.handleCurrent)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, studio *composer.Studio, opts Options) error {
	return NewRouter(studio, opts).Run(fmt.Sprintf(":%d", port))
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "melodygen",
	})
}

// listOptions godoc
// @Summary List generation options
// @Description Returns the names every generation parameter accepts, and the defaults
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/options [get]
func (s *server) listOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"roots":            theory.Roots(),
		"modes":            theory.Modes(),
		"contours":         melody.Contours(),
		"interval_styles":  melody.IntervalStyles(),
		"chord_strategies": harmony.Strategies(),
		"harmonic_rhythms": s.studio.Composer().Presets().Names(),
		"rhythm_weights":   rhythm.Keys(),
		"formats":          export.Formats(),
		"defaults":         s.defaults,
	})
}

// listPresets godoc
// @Summary List harmonic rhythm presets
// @Description Returns every registered harmonic rhythm with its definition
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]harmony.Preset
// @Router /api/v1/presets [get]
func (s *server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"presets": s.studio.Composer().Presets().All(),
	})
}

// handleCompose godoc
// @Summary Generate a composition
// @Description Generates a melody and chord track. Omitted parameters take the server defaults.
// @Tags compose
// @Accept json
// @Produce json,application/yaml,application/msgpack,text/plain
// @Param params body composer.Params false "Generation parameters"
// @Param format query string false "Response format: json (default), yaml, msgpack or text"
// @Success 200 {object} composer.Composition
// @Failure 400 {object} map[string]string
// @Router /api/v1/compose [post]
func (s *server) handleCompose(c *gin.Context) {
	format := export.ParseFormat(c.Query("format"))
	if format == export.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", c.Query("format")), "field": "format"})
		return
	}

	comp, ok := s.compose(c)
	if !ok {
		return
	}
	s.respond(c, comp, format)
}

// handleComposeMIDI godoc
// @Summary Generate a composition as MIDI
// @Description Generates a composition and returns it as a two-track Standard MIDI File
// @Tags compose
// @Accept json
// @Produce audio/midi
// @Param params body composer.Params false "Generation parameters"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/compose/midi [post]
func (s *server) handleComposeMIDI(c *gin.Context) {
	comp, ok := s.compose(c)
	if !ok {
		return
	}
	s.respond(c, comp, export.FormatMIDI)
}

// handleCurrent godoc
// @Summary Latest composition
// @Description Returns the most recently generated composition
// @Tags compose
// @Produce json,application/yaml,application/msgpack,text/plain,audio/midi
// @Param format query string false "Response format: json (default), yaml, msgpack, text or midi"
// @Success 200 {object} composer.Composition
// @Failure 404 {object} map[string]string
// @Router /api/v1/compositions/current [get]
func (s *server) handleCurrent(c *gin.Context) {
	format := export.ParseFormat(c.Query("format"))
	if format == export.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", c.Query("format")), "field": "format"})
		return
	}

	comp := s.studio.Current()
	if comp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No composition generated yet"})
		return
	}
	s.respond(c, comp, format)
}

// compose binds the request parameters over the defaults and generates.
// It writes the error response itself and reports whether to continue.
func (s *server) compose(c *gin.Context) (*composer.Composition, bool) {
	p := s.defaults
	p.RhythmWeights = nil
	if err := c.ShouldBindJSON(&p); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return nil, false
	}
	if p.RhythmWeights == nil {
		p.RhythmWeights = s.defaults.RhythmWeights
	}

	comp, err := s.studio.Regenerate(p)
	if err != nil {
		var cfgErr *composer.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error(), "field": cfgErr.Field})
			return nil, false
		}
		captureError(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return comp, true
}

func (s *server) respond(c *gin.Context, comp *composer.Composition, format export.Format) {
	data, err := export.Encode(comp, format)
	if err != nil {
		captureError(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Composition-ID", comp.ID)
	if format == export.FormatMIDI {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName(comp, format)))
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func fileName(comp *composer.Composition, format export.Format) string {
	id := comp.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "melodygen-" + id + format.Extension()
}
