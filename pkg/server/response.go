package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	internalErrorDetail = "Internal server error"

	headerResponseText = "X-Response-Text"
	headerMissedCall   = "X-Missed-Call"
	headerMatched      = "X-Matched-Notifications"
)

var exposedHeaders = []string{headerResponseText, headerMissedCall, headerMatched, "Content-Disposition"}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorStatus maps the error taxonomy to an HTTP status and a client-safe detail
func errorStatus(err error) (int, string) {
	switch {
	case goerr.HasTag(err, model.TagValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case goerr.HasTag(err, model.TagUpstream):
		return http.StatusBadGateway, err.Error()
	case goerr.HasTag(err, model.TagStore), goerr.HasTag(err, model.TagSynthesis):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, internalErrorDetail
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorStatus(err)
	logger := logging.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logging.ErrAttr(err), "status", status)
	} else {
		logger.Info("request rejected", logging.ErrAttr(err), "status", status)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

// flattenHeader keeps a header value on one line
func flattenHeader(v string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(v)
}

// sendAudio streams the artifact as a WAV attachment. An error is returned only
// if nothing has been written yet.
func sendAudio(w http.ResponseWriter, r *http.Request, resp *model.VoiceResponse, filename string, headers map[string]string) error {
	f, err := os.Open(resp.AudioArtifactPath)
	if err != nil {
		return goerr.Wrap(err, "Failed to generate audio file",
			goerr.T(model.TagSynthesis),
			goerr.V("path", resp.AudioArtifactPath))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return goerr.Wrap(err, "Failed to generate audio file",
			goerr.T(model.TagSynthesis),
			goerr.V("path", resp.AudioArtifactPath))
	}

	h := w.Header()
	h.Set("Content-Type", "audio/wav")
	h.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	h.Set(headerResponseText, flattenHeader(resp.Text))
	for k, v := range headers {
		h.Set(k, v)
	}

	http.ServeContent(w, r, filename, info.ModTime(), f)
	return nil
}
