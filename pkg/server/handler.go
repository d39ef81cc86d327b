package server

import (
	"net/http"
	"strconv"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	missedCallAudioFilename = "missed_call.wav"
	queryAudioFilename      = "agent_response.wav"
)

type ingestResponse struct {
	Status         string               `json:"status"`
	NotificationID model.NotificationID `json:"notificationId"`
	StoredDocument string               `json:"storedDocument,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var n model.Notification
	if err := decodeBody(w, r, notificationSchema, &n); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.uc.Ingest(r.Context(), &n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch {
	case result.Intercepted != nil:
		resp := &model.VoiceResponse{Text: result.ResponseText}
		s.respondWithAudio(w, r, resp, missedCallAudioFilename,
			map[string]string{headerMissedCall: "true"},
			"Failed to generate missed-call audio")

	case result.Skipped:
		writeJSON(w, http.StatusOK, ingestResponse{
			Status:         "skipped",
			NotificationID: n.ID,
		})

	default:
		writeJSON(w, http.StatusCreated, ingestResponse{
			Status:         "ingested",
			NotificationID: n.ID,
			StoredDocument: result.Document.Text,
		})
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q model.Query
	if err := decodeBody(w, r, querySchema, &q); err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := s.uc.Query(r.Context(), &q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := &model.VoiceResponse{Text: answer.Text, MatchedCount: answer.MatchedCount}
	s.respondWithAudio(w, r, resp, queryAudioFilename,
		map[string]string{headerMatched: strconv.Itoa(answer.MatchedCount)},
		"Failed to generate audio file")
}

// respondWithAudio synthesizes resp.Text and sends it. The artifact is removed
// after sending whether or not the client received it.
func (s *Server) respondWithAudio(w http.ResponseWriter, r *http.Request, resp *model.VoiceResponse, filename string, headers map[string]string, failureDetail string) {
	ctx := r.Context()

	err := s.synth.Render(ctx, resp.Text, func(artifact *triage.Artifact) error {
		resp.AudioArtifactPath = artifact.Path
		return sendAudio(w, r, resp, filename, headers)
	})
	if err == nil {
		return
	}

	if goerr.HasTag(err, model.TagSynthesis) {
		logging.From(ctx).Error("audio response failed", logging.ErrAttr(err), "file", filename)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: failureDetail})
		return
	}
	writeError(w, r, err)
}
