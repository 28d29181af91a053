// Package agent talks to the connector installed on each managed site.
//
// Every request is signed with the site's key/secret pair as a compact HS256
// JWS carried in the Authorization header; the token binds the method, the
// canonical path with sorted query, a SHA-256 of the body, and an expiry.
// Credentials never travel in the query string. VerifyRequest is the
// connector-side check and documents the contract.
//
// Failures are returned as *Error with a Kind of site not connected, network
// unavailable (refused, DNS, timeouts), agent rejected (non-2xx, carrying the
// status and message), or malformed response (2xx without valid JSON). The
// client never retries.
package agent
