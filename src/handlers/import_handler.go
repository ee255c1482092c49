// backend/src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/wealthfolio/backend/src/config"
	"github.com/username/wealthfolio/backend/src/importer"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/security/validation"
	"github.com/username/wealthfolio/backend/src/services"
	"github.com/username/wealthfolio/backend/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: service,
	}
}

// fileOptions are the per-file import options the client may attach under
// the "options" form field, keyed by filename.
type fileOptions struct {
	Broker     string            `json:"broker,omitempty"`
	AssetClass string            `json:"asset_class,omitempty"`
	Mapping    map[string]string `json:"column_mapping,omitempty"`
}

// HandleUpload is step one of the import wizard: it parses and reconciles
// the uploaded files against the ledger and returns a preview session.
// Nothing is written until the client commits.
func (h *ImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		utils.SendJSONError(w, "No files found in request. Ensure the 'files' field is used.", http.StatusBadRequest)
		return
	}
	if len(fileHeaders) > config.Cfg.MaxUploadFiles {
		utils.SendJSONError(w, fmt.Sprintf("Too many files, max %d per upload", config.Cfg.MaxUploadFiles), http.StatusBadRequest)
		return
	}

	options := map[string]fileOptions{}
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			utils.SendJSONError(w, "Malformed 'options' field, expected JSON keyed by filename", http.StatusBadRequest)
			return
		}
	}

	var inputs []importer.FileInput
	var closers []interface{ Close() error }
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, fh := range fileHeaders {
		if fh.Size > config.Cfg.MaxUploadSizeBytes {
			logger.L.Warn("Uploaded file header reports size too large", "filename", fh.Filename, "fileSize", fh.Size, "limit", config.Cfg.MaxUploadSizeBytes)
			utils.SendJSONError(w, fmt.Sprintf("File %q too large, max %d MB", fh.Filename, config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
			return
		}

		clientContentType := fh.Header.Get("Content-Type")
		if err := validation.ValidateClientContentType(clientContentType); err != nil {
			logger.L.Warn("Invalid client-declared file type", "filename", fh.Filename, "contentType", clientContentType, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		file, err := fh.Open()
		if err != nil {
			logger.L.Warn("Failed to open uploaded file", "filename", fh.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Failed to read uploaded file %q", fh.Filename), http.StatusBadRequest)
			return
		}
		closers = append(closers, file)

		if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
			logger.L.Warn("Server-side file content validation failed", "filename", fh.Filename, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		opts := options[fh.Filename]
		if opts.Broker == "" {
			opts.Broker = r.FormValue("broker")
		}
		if opts.AssetClass == "" {
			opts.AssetClass = r.FormValue("asset_class")
		}
		inputs = append(inputs, importer.FileInput{
			Name:       fh.Filename,
			Reader:     file,
			Broker:     validation.StripUnprintable(opts.Broker),
			AssetClass: validation.StripUnprintable(opts.AssetClass),
			Mapping:    opts.Mapping,
		})
	}

	logger.L.Info("Processing import upload", "files", len(inputs))
	result, err := h.importService.Preview(r.Context(), inputs)
	if err != nil {
		if errors.Is(err, importer.ErrEmptyBatch) {
			// Return the per-file results so the client can show why
			// every row was rejected.
			utils.SendJSON(w, result, http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Internal error building import preview", "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the files. Please try again later.", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}

type commitRequest struct {
	SessionID string            `json:"session_id"`
	Actions   map[string]string `json:"actions"`
	ApplyAll  string            `json:"apply_all,omitempty"`
}

// HandleCommit is step two: it applies the reviewed resolution actions and
// writes the ledger in one transaction.
func (h *ImportHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Malformed JSON body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		utils.SendJSONError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	actions := make(map[string]models.ResolutionAction, len(req.Actions))
	for id, raw := range req.Actions {
		action := models.ResolutionAction(raw)
		if !models.ValidConflictAction(action) {
			utils.SendJSONError(w, fmt.Sprintf("invalid action %q for conflict %q", raw, id), http.StatusBadRequest)
			return
		}
		actions[id] = action
	}
	var applyAll *models.ResolutionAction
	if req.ApplyAll != "" {
		action := models.ResolutionAction(req.ApplyAll)
		if !models.ValidConflictAction(action) {
			utils.SendJSONError(w, fmt.Sprintf("invalid apply_all action %q", req.ApplyAll), http.StatusBadRequest)
			return
		}
		applyAll = &action
	}

	result, err := h.importService.Commit(r.Context(), req.SessionID, actions, applyAll)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			utils.SendJSONError(w, "Import session not found or expired. Upload the files again.", http.StatusNotFound)
		case errors.Is(err, importer.ErrInvalidAction):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrCommitFailed):
			logger.L.Error("Ledger commit failed, rolled back", "sessionID", req.SessionID, "error", err)
			utils.SendJSONError(w, "Committing the import failed; no changes were made. Please try again.", http.StatusInternalServerError)
		default:
			logger.L.Error("Internal error committing import", "sessionID", req.SessionID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while committing the import.", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}

type manualRequest struct {
	AssetClass string            `json:"asset_class"`
	Fields     map[string]string `json:"fields"`
}

// HandleManual adds a single hand-entered holding through the same
// reconciliation pipeline as a file upload.
func (h *ImportHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Malformed JSON body", http.StatusBadRequest)
		return
	}
	if req.AssetClass == "" {
		utils.SendJSONError(w, "asset_class is required", http.StatusBadRequest)
		return
	}

	fields := make(map[string]string, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = validation.StripUnprintable(v)
	}
	for _, dateField := range []string{"maturity_date", "buy_date"} {
		if raw, ok := fields[dateField]; ok && raw != "" {
			normalized, err := utils.NormalizeDate(raw)
			if err != nil {
				utils.SendJSONError(w, fmt.Sprintf("invalid %s: %v", dateField, err), http.StatusBadRequest)
				return
			}
			fields[dateField] = normalized
		}
	}

	result, err := h.importService.Manual(r.Context(), req.AssetClass, fields)
	if err != nil {
		// Unknown class, empty entry, and normalization rejections all
		// carry a field-level reason the client can show directly.
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}
