// Package core provides the shared value types of the SSP engine:
// channel metadata, the projection-vector record, warning values, and
// small numeric helpers. All types are plain values owned by the caller;
// nothing in this package holds global state.
package core
