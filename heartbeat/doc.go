// Package heartbeat emits worker liveness signals into the shared Workers
// table. Each signal is a lightweight row upsert carrying the worker's
// identity, a wall-clock LastSeen timestamp and a free-form status.
//
// Liveness is advisory only. No coordination decision keys off the Workers
// table; a failed heartbeat write is logged by the caller and never fatal.
package heartbeat
