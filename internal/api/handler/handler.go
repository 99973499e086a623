package handler

import (
	"log/slog"

	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/convert"
	"github.com/filealchemy/converter-service/internal/job"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Registry    *job.Registry
	Runner      *job.Runner
	Store       *artifact.Store
	Converters  *convert.Registry
	MaxFileSize int64
	AppName     string
	AppVersion  string
}

// ConvertHandler handles conversion-related HTTP requests
type ConvertHandler struct {
	logger      *slog.Logger
	registry    *job.Registry
	runner      *job.Runner
	store       *artifact.Store
	converters  *convert.Registry
	maxFileSize int64
	appName     string
	appVersion  string
}

// NewConvertHandler creates a new ConvertHandler instance
func NewConvertHandler(deps *Dependencies) *ConvertHandler {
	return &ConvertHandler{
		logger:      deps.Logger,
		registry:    deps.Registry,
		runner:      deps.Runner,
		store:       deps.Store,
		converters:  deps.Converters,
		maxFileSize: deps.MaxFileSize,
		appName:     deps.AppName,
		appVersion:  deps.AppVersion,
	}
}
