// iojson are utilities for reading and writing JSON IO from a
// command line and HTTP perspective
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Reasons carried in Error.Data["reason"] so clients can map a failure back
// to a sentinel error.
const (
	ReasonNotFound       = "not_found"
	ReasonStalePatch     = "stale_patch"
	ReasonAlreadyClaimed = "already_claimed"
	ReasonExists         = "exists"
	ReasonInvalid        = "invalid"
	ReasonInternal       = "internal"
)

// Error is the standard error format type that is returned when errors
// happen.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (e Error) Error() string {
	return e.Message
}

// Reason returns Data["reason"], or "" when absent.
func (e Error) Reason() string {
	r, _ := e.Data["reason"].(string)
	return r
}

// ReadError decodes an Error body. Bodies that are not an Error produce one
// whose message is the raw text.
func ReadError(r io.Reader) Error {
	bits, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return Error{Message: err.Error()}
	}
	var e Error
	if err := json.Unmarshal(bits, &e); err != nil || e.Message == "" {
		return Error{Message: string(bits)}
	}
	return e
}

func jsonError(msg string, jsonErr error) string {
	// Use json.Marshal to properly escape strings
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError builds an Error and marshals it. A marshaling failure falls
// back to a hand built blob noting the json error, which indicates a bug.
func MarshalError(msg string, data map[string]any) string {
	resp := Error{Message: msg, Data: data}

	bits, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return jsonError(msg, err)
	}

	return string(bits)
}

// WriteError writes an Error to w.
func WriteError(w io.Writer, msg string, data map[string]any) error {
	_, err := fmt.Fprintln(w, MarshalError(msg, data))
	return err
}

func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		errStr := jsonError("error marshaling in iojson.Write", err)
		_, err = fmt.Fprintln(ew, errStr)
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// WriteLine writes obj as a single compact line, for newline delimited
// output.
func WriteLine(w io.Writer, obj any) error {
	return json.NewEncoder(w).Encode(obj)
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr]
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}
