// Package api serves read-only views over a directory of quantized-model
// documents.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/heliosml/helios/internal/logger"
	"github.com/heliosml/helios/pkg/qdoc"
)

// Server exposes the quantized documents found in Dir.
type Server struct {
	dir string
	log logger.Logger
}

func NewServer(dir string, log logger.Logger) *Server {
	return &Server{dir: dir, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:name", s.handleGetModel)
	e.GET("/v1/models/:name/stats", s.handleGetStats)
}

// ModelSummary is one listing entry.
type ModelSummary struct {
	Name             string  `json:"name"`
	SizeBytes        int64   `json:"size_bytes"`
	QuantizedWeights int     `json:"quantized_weights"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// WeightView is the per-tensor metadata returned by the model endpoint.
// The packed bytes stay on disk; only their length is reported.
type WeightView struct {
	DType     string  `json:"dtype"`
	Scale     float32 `json:"scale"`
	Shape     []int   `json:"shape,omitempty"`
	Elements  int     `json:"elements"`
	DataBytes int     `json:"data_bytes"`
}

// ModelDetail is the model endpoint response.
type ModelDetail struct {
	Name    string                `json:"name"`
	Format  string                `json:"format"`
	Weights map[string]WeightView `json:"weights"`
	Stats   qdoc.Stats            `json:"stats"`
}

func (s *Server) handleListModels(c *echo.Context) error {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "storage_error", "cannot read models directory")
	}

	models := make([]ModelSummary, 0, len(ents))
	for _, ent := range ents {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), qdoc.Ext) {
			continue
		}
		path := filepath.Join(s.dir, ent.Name())
		doc, err := qdoc.Read(path)
		if err != nil {
			s.log.Warn("skipping unreadable document", "path", path, "error", err)
			continue
		}
		var size int64
		if info, err := ent.Info(); err == nil {
			size = info.Size()
		}
		models = append(models, ModelSummary{
			Name:             strings.TrimSuffix(ent.Name(), qdoc.Ext),
			SizeBytes:        size,
			QuantizedWeights: doc.Stats.QuantizedWeights,
			CompressionRatio: doc.Stats.CompressionRatio,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   models,
	})
}

func (s *Server) handleGetModel(c *echo.Context) error {
	doc, name, err := s.openDocument(c)
	if err != nil {
		return err
	}

	weights := make(map[string]WeightView, len(doc.Weights))
	for tensor, w := range doc.Weights {
		weights[tensor] = WeightView{
			DType:     w.DType,
			Scale:     w.Scale,
			Shape:     w.Shape,
			Elements:  w.Elements,
			DataBytes: len(w.Data),
		}
	}
	return c.JSON(http.StatusOK, ModelDetail{
		Name:    name,
		Format:  doc.Format,
		Weights: weights,
		Stats:   doc.Stats,
	})
}

func (s *Server) handleGetStats(c *echo.Context) error {
	doc, _, err := s.openDocument(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc.Stats)
}

// openDocument resolves the :name parameter to a document in the serve
// directory. Names must be bare (no path separators).
func (s *Server) openDocument(c *echo.Context) (*qdoc.Document, string, error) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, "", writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid model name")
	}
	path := filepath.Join(s.dir, name+qdoc.Ext)
	doc, err := qdoc.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", writeError(c, http.StatusNotFound, "not_found_error", "model not found: "+name)
		}
		s.log.Error("read document", "path", path, "error", err)
		return nil, "", writeError(c, http.StatusInternalServerError, "storage_error", "cannot read model document")
	}
	return doc, name, nil
}
