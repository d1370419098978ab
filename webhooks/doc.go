// Package webhooks turns raw payment gateway deliveries into payment
// notifications and decides what the gateway is answered with.
//
// Only a rejected signature is surfaced (403). Every other outcome, including
// unknown orders and refused transitions, is acknowledged with 200 so the
// gateway stops redelivering; the outcome is logged and kept in the result
// metadata.
package webhooks
