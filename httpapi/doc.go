// Package httpapi exposes the top-up lifecycle over HTTP: checkout, the
// payment gateway webhook, order lookup, the product list and health.
//
// Failure bodies carry a generic message. The error kind behind a failure is
// logged, not returned to the caller.
package httpapi
