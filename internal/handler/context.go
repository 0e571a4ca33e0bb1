package handler

import "context"

type contextKey string

const contextVendorID contextKey = "vendorID"

// WithVendorID stores the authenticated vendor on the request context.
func WithVendorID(ctx context.Context, vendorID int64) context.Context {
	return context.WithValue(ctx, contextVendorID, vendorID)
}

func VendorIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextVendorID).(int64)
	return id, ok && id > 0
}
