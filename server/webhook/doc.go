// Package webhook authenticates and decodes LINE Messaging API webhook
// deliveries.
//
// # Security Model
//
//   - The platform signs the raw request body with HMAC-SHA256 keyed by the
//     channel secret and sends base64(mac) in X-Line-Signature.
//   - Verification goes through the LINE SDK, which compares MACs with
//     hmac.Equal (constant time).
//   - Every verification failure is reported with the same generic error;
//     callers never learn which part was wrong.
//   - Nothing in a delivery is trusted or decoded before the signature checks out.
//
// # Event Dispatch
//
// Deliveries are decoded into the SDK's typed events. Only a MessageEvent
// carrying TextMessageContent becomes an InboundEvent; every other kind is
// counted and skipped.
package webhook
