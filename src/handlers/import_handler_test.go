package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/wealthfolio/backend/src/config"
	"github.com/username/wealthfolio/backend/src/importer"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/services"
)

func TestMain(m *testing.M) {
	config.LoadConfig()
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeImportService records calls and returns canned results.
type fakeImportService struct {
	previewInputs []importer.FileInput
	preview       *services.PreviewResult
	previewErr    error

	commitSession string
	commitActions map[string]models.ResolutionAction
	commitApply   *models.ResolutionAction
	commit        *services.CommitResult
	commitErr     error
}

func (f *fakeImportService) Preview(ctx context.Context, inputs []importer.FileInput) (*services.PreviewResult, error) {
	f.previewInputs = inputs
	return f.preview, f.previewErr
}

func (f *fakeImportService) Manual(ctx context.Context, classCode string, fields map[string]string) (*services.PreviewResult, error) {
	return f.preview, f.previewErr
}

func (f *fakeImportService) Commit(ctx context.Context, sessionID string, actions map[string]models.ResolutionAction, applyAll *models.ResolutionAction) (*services.CommitResult, error) {
	f.commitSession = sessionID
	f.commitActions = actions
	f.commitApply = applyAll
	return f.commit, f.commitErr
}

func multipartUpload(t *testing.T, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", "text/csv")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	fake := &fakeImportService{preview: &services.PreviewResult{SessionID: "abc"}}
	handler := NewImportHandler(fake)

	req := multipartUpload(t,
		map[string]string{"holdings.csv": "Instrument,Qty.,Avg. cost\nTCS,5,3500\n"},
		map[string]string{"options": `{"holdings.csv":{"broker":"zerodha"}}`})
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, fake.previewInputs, 1)
	assert.Equal(t, "holdings.csv", fake.previewInputs[0].Name)
	assert.Equal(t, "zerodha", fake.previewInputs[0].Broker)

	var resp services.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.SessionID)
}

func TestHandleUploadNoFiles(t *testing.T) {
	handler := NewImportHandler(&fakeImportService{})
	req := multipartUpload(t, nil, map[string]string{"broker": "zerodha"})
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadEmptyBatch(t *testing.T) {
	fake := &fakeImportService{
		preview:    &services.PreviewResult{Rejected: []models.RejectedRow{{Reason: "missing required field \"quantity\""}}},
		previewErr: importer.ErrEmptyBatch,
	}
	handler := NewImportHandler(fake)

	req := multipartUpload(t, map[string]string{"holdings.csv": "a,b\nc,d\n"}, nil)
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "empty batch returns the rejections, not a bare error")
	var resp services.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Rejected, 1)
}

func TestHandleCommit(t *testing.T) {
	fake := &fakeImportService{commit: &services.CommitResult{Summary: services.CommitSummary{Merged: 1}}}
	handler := NewImportHandler(fake)

	body := `{"session_id":"abc","actions":{"EQUITY_IN::RELIANCE":"merge"},"apply_all":"skip"}`
	req := httptest.NewRequest(http.MethodPost, "/api/import/commit", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.HandleCommit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "abc", fake.commitSession)
	assert.Equal(t, models.ActionMerge, fake.commitActions["EQUITY_IN::RELIANCE"])
	require.NotNil(t, fake.commitApply)
	assert.Equal(t, models.ActionSkip, *fake.commitApply)
}

func TestHandleCommitValidation(t *testing.T) {
	handler := NewImportHandler(&fakeImportService{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing session", `{"actions":{}}`, http.StatusBadRequest},
		{"invalid action", `{"session_id":"abc","actions":{"x":"create"}}`, http.StatusBadRequest},
		{"invalid apply_all", `{"session_id":"abc","apply_all":"obliterate"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/import/commit", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.HandleCommit(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHandleCommitSessionExpired(t *testing.T) {
	handler := NewImportHandler(&fakeImportService{commitErr: services.ErrSessionNotFound})
	req := httptest.NewRequest(http.MethodPost, "/api/import/commit", bytes.NewBufferString(`{"session_id":"gone"}`))
	rec := httptest.NewRecorder()
	handler.HandleCommit(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleManualNormalizesDates(t *testing.T) {
	fake := &fakeImportService{preview: &services.PreviewResult{SessionID: "abc"}}
	handler := NewImportHandler(fake)

	body := `{"asset_class":"FIXED_DEPOSIT","fields":{"name":"HDFC FD","amount_invested":"100000","maturity_date":"31-03-2027"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/import/manual", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.HandleManual(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	badDate := `{"asset_class":"FIXED_DEPOSIT","fields":{"name":"HDFC FD","amount_invested":"100000","maturity_date":"someday"}}`
	req = httptest.NewRequest(http.MethodPost, "/api/import/manual", bytes.NewBufferString(badDate))
	rec = httptest.NewRecorder()
	handler.HandleManual(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
