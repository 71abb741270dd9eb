package logging

import "context"

type contextKey string

const (
	workerKey    contextKey = "worker"
	itemKey      contextKey = "item"
	requestIDKey contextKey = "request_id"
)

// WithWorker adds a worker key ("name:role") to the context.
func WithWorker(ctx context.Context, worker string) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// WithItem adds an item slug or task source to the context.
func WithItem(ctx context.Context, item string) context.Context {
	return context.WithValue(ctx, itemKey, item)
}

// WithRequestID adds an HTTP request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetWorker retrieves the worker key from the context.
// Returns empty string if not present.
func GetWorker(ctx context.Context) string {
	return get(ctx, workerKey)
}

// GetItem retrieves the item from the context.
// Returns empty string if not present.
func GetItem(ctx context.Context) string {
	return get(ctx, itemKey)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return get(ctx, requestIDKey)
}

func get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
