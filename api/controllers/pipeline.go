package controllers

import (
	"net/http"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/internal/pipeline"
	"github.com/angelmondragon/allergyscan/pkg/enums"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

type pipelineStateResponse struct {
	State   enums.PipelineState `json:"state"`
	Outcome *scanResponse       `json:"outcome,omitempty"`
	Error   *pipelineError      `json:"error,omitempty"`
}

type pipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newPipelineStateResponse(snap pipeline.Snapshot) pipelineStateResponse {
	resp := pipelineStateResponse{State: snap.State}
	if snap.Outcome != nil {
		out := newScanResponse(snap.Outcome)
		resp.Outcome = &out
	}
	if snap.Error != nil {
		code := pkgerrors.CodeInternal
		msg := snap.Error.Error()
		if typed := pkgerrors.As(snap.Error); typed != nil {
			code = typed.Code()
			msg = typed.Message()
		}
		resp.Error = &pipelineError{Code: string(code), Message: msg}
	}
	return resp
}

func PipelineState(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPipelineStateResponse(sess.Pipeline.Snapshot()))
	}
}

// DismissPipeline returns a completed run to idle.
func DismissPipeline(logg *logger.Logger) http.HandlerFunc {
	return settlePipeline(logg, (*pipeline.Orchestrator).Dismiss)
}

// AcknowledgePipeline returns a failed run to idle.
func AcknowledgePipeline(logg *logger.Logger) http.HandlerFunc {
	return settlePipeline(logg, (*pipeline.Orchestrator).Acknowledge)
}

func settlePipeline(logg *logger.Logger, action func(*pipeline.Orchestrator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := action(sess.Pipeline); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPipelineStateResponse(sess.Pipeline.Snapshot()))
	}
}
