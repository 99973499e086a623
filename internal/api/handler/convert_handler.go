package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filealchemy/converter-service/internal/api/dto"
	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/convert"
	"github.com/filealchemy/converter-service/internal/job"
)

// ConvertBatch handles POST /convert-batch.
// Validation fails fast: no artifact or job exists until every file in the
// batch has passed the checks.
func (h *ConvertHandler) ConvertBatch(c *gin.Context) {
	sourceFormat := strings.ToUpper(strings.TrimSpace(c.PostForm("sourceFormat")))
	targetFormat := strings.ToUpper(strings.TrimSpace(c.PostForm("targetFormat")))

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No files provided"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No files provided"})
		return
	}

	if sourceFormat == "" || targetFormat == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Source and target formats required"})
		return
	}

	if supported, reason := h.converters.Supports(sourceFormat, targetFormat); !supported {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: reason})
		return
	}

	for _, fh := range files {
		if msg := h.validateUpload(fh); msg != "" {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
			return
		}
	}

	inputs := make([]job.InputFile, 0, len(files))
	for _, fh := range files {
		input, err := h.storeUpload(fh)
		if err != nil {
			h.logger.Error("Failed to stage upload",
				slog.String("file", fh.Filename),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store uploaded file"})
			return
		}
		inputs = append(inputs, input)
	}

	created := h.registry.Create(inputs, sourceFormat, targetFormat)

	if err := h.runner.Launch(created.ID); err != nil {
		h.logger.Error("Failed to launch job",
			slog.String("job_id", created.ID),
			slog.String("error", err.Error()),
		)
		_ = h.registry.Transition(created.ID, func(j *job.Job) {
			j.State = job.StateFailed
			j.ErrorMessage = "server is busy, try again later"
		})
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Server is busy, try again later"})
		return
	}

	h.logger.Info("Batch conversion started",
		slog.String("job_id", created.ID),
		slog.Int("files", len(inputs)),
		slog.String("source_format", created.SourceFormat),
		slog.String("target_format", created.TargetFormat),
	)

	c.JSON(http.StatusOK, dto.ConvertBatchResponse{
		JobID:   created.ID,
		Message: fmt.Sprintf("Started conversion of %d files", len(inputs)),
	})
}

// JobStatus handles GET /jobs/:jobId
func (h *ConvertHandler) JobStatus(c *gin.Context) {
	jobID := c.Param("jobId")

	current, err := h.registry.Get(jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get job"})
		return
	}

	results := make([]dto.FileResultDTO, len(current.Results))
	for i, res := range current.Results {
		results[i] = dto.FileResultDTO{
			OriginalName:      res.OriginalName,
			ConvertedName:     res.ConvertedName,
			Success:           res.Success,
			SizeBytes:         res.SizeBytes,
			DownloadReference: res.DownloadReference,
			Error:             res.Error,
		}
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:           current.ID,
		State:           string(current.State),
		ProgressPercent: current.ProgressPercent,
		Results:         results,
		ErrorMessage:    current.ErrorMessage,
	})
}

// DownloadArtifact handles GET /artifacts/:storageKey
func (h *ConvertHandler) DownloadArtifact(c *gin.Context) {
	key := c.Param("storageKey")

	path, err := h.store.Resolve(artifact.CategoryConverted, key)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "File not found"})
		return
	}

	c.FileAttachment(path, displayNameFromKey(key))
}

// ConvertSingle handles POST /convert: a synchronous single-file conversion
// whose uploaded input is removed once the request finishes.
func (h *ConvertHandler) ConvertSingle(c *gin.Context) {
	sourceFormat := strings.ToUpper(strings.TrimSpace(c.PostForm("sourceFormat")))
	targetFormat := strings.ToUpper(strings.TrimSpace(c.PostForm("targetFormat")))

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No file provided"})
		return
	}

	if sourceFormat == "" || targetFormat == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Source and target formats required"})
		return
	}

	if supported, reason := h.converters.Supports(sourceFormat, targetFormat); !supported {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: reason})
		return
	}

	if msg := h.validateUpload(fh); msg != "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
		return
	}

	input, err := h.storeUpload(fh)
	if err != nil {
		h.logger.Error("Failed to stage upload",
			slog.String("file", fh.Filename),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store uploaded file"})
		return
	}
	// The synchronous path keeps no input artifact around
	defer func() {
		if err := h.store.Remove(artifact.CategoryUpload, filepath.Base(input.StoredPath)); err != nil {
			h.logger.Warn("Failed to remove ephemeral upload",
				slog.String("file", input.OriginalName),
				slog.String("error", err.Error()),
			)
		}
	}()

	inputExt := convert.NormalizeFormat(filepath.Ext(input.OriginalName))
	target := convert.NormalizeFormat(targetFormat)
	container := convert.ContainerExt(inputExt, target)

	stem := strings.TrimSuffix(input.OriginalName, filepath.Ext(input.OriginalName))
	convertedName := stem + "." + container
	key := artifact.NewKey(convertedName)
	outputPath := h.store.Placeholder(artifact.CategoryConverted, key)

	err = h.converters.Convert(c.Request.Context(), input.StoredPath, outputPath, inputExt, convert.Options{
		TargetFormat: target,
	})
	if err != nil {
		h.logger.Warn("Synchronous conversion failed",
			slog.String("file", input.OriginalName),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: fmt.Sprintf("Failed to convert %s from %s to %s", input.OriginalName, sourceFormat, targetFormat),
		})
		return
	}

	size, err := h.store.SizeOf(outputPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: fmt.Sprintf("Failed to convert %s from %s to %s", input.OriginalName, sourceFormat, targetFormat),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ConvertSingleResponse{
		OriginalName:      input.OriginalName,
		ConvertedName:     convertedName,
		SizeBytes:         size,
		DownloadReference: "/artifacts/" + key,
	})
}

// ListFormats handles GET /formats
func (h *ConvertHandler) ListFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats": h.converters.ListFormats(),
	})
}

// Health handles GET /health
func (h *ConvertHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.appName,
		"version": h.appVersion,
	})
}

// validateUpload returns a rejection message, or "" when the file is acceptable
func (h *ConvertHandler) validateUpload(fh *multipart.FileHeader) string {
	if fh.Filename == "" {
		return "No files selected"
	}

	if fh.Size > h.maxFileSize {
		return fmt.Sprintf("File %s is too large (max %dMB)", fh.Filename, h.maxFileSize/(1024*1024))
	}

	ext := convert.NormalizeFormat(filepath.Ext(fh.Filename))
	if ext == "" || !h.converters.InputSupported(ext) {
		return fmt.Sprintf("File type not supported: %s", fh.Filename)
	}

	return ""
}

// storeUpload stages one uploaded file and describes it as a job input
func (h *ConvertHandler) storeUpload(fh *multipart.FileHeader) (job.InputFile, error) {
	f, err := fh.Open()
	if err != nil {
		return job.InputFile{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	art, err := h.store.Store(artifact.CategoryUpload, fh.Filename, f)
	if err != nil {
		return job.InputFile{}, err
	}

	return job.InputFile{
		OriginalName: art.DisplayName,
		StoredPath:   art.Path,
		SizeBytes:    art.SizeBytes,
	}, nil
}

// displayNameFromKey strips the uuid prefix off a storage key for the
// download filename
func displayNameFromKey(key string) string {
	if _, name, found := strings.Cut(key, "_"); found && name != "" {
		return name
	}
	return key
}
