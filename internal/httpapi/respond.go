package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
	"github.com/colonyops/workboard/pkg/iojson"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and an iojson.Error body.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, data := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, iojson.Error{Message: err.Error(), Data: data})
}

func classify(err error) (int, map[string]any) {
	var (
		notFound  *backlog.NotFoundError
		stale     *workdir.StalePatchError
		parseErr  *backlog.ParseError
		fieldErrs criterio.FieldErrors
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, map[string]any{"reason": iojson.ReasonNotFound, "kind": notFound.Kind, "key": notFound.Key}
	case errors.Is(err, backlog.ErrNotFound), errors.Is(err, worker.ErrUnknownWorker):
		return http.StatusNotFound, map[string]any{"reason": iojson.ReasonNotFound}

	case errors.As(err, &stale):
		return http.StatusConflict, map[string]any{"reason": iojson.ReasonStalePatch, "file": stale.File, "patch": stale.Description}
	case errors.Is(err, worker.ErrAlreadyClaimed):
		return http.StatusConflict, map[string]any{"reason": iojson.ReasonAlreadyClaimed}
	case errors.Is(err, workdir.ErrExists):
		return http.StatusConflict, map[string]any{"reason": iojson.ReasonExists}

	case errors.As(err, &fieldErrs):
		fields := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field] = fe.Err.Error()
		}
		return http.StatusBadRequest, map[string]any{"reason": iojson.ReasonInvalid, "fields": fields}
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, map[string]any{"reason": iojson.ReasonInvalid, "source": parseErr.Source, "field": parseErr.Field}
	case errors.Is(err, errBadRequest),
		errors.Is(err, workdir.ErrInvalidSource),
		errors.Is(err, workdir.ErrInvalidChange),
		errors.Is(err, backlog.ErrInvalidStatus),
		errors.Is(err, backlog.ErrMissingField),
		errors.Is(err, backlog.ErrInvalidName),
		errors.Is(err, worker.ErrInvalidReport):
		return http.StatusBadRequest, map[string]any{"reason": iojson.ReasonInvalid}
	}

	return http.StatusInternalServerError, map[string]any{"reason": iojson.ReasonInternal}
}

// decode reads a JSON body of at most limit bytes into v.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}
