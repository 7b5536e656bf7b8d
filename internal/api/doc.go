// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between operators and the
// download queue, translating HTTP concerns to queue operations.
package api
