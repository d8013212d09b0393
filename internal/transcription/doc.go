// Package transcription implements the HTTP client for the speech-to-text
// API. It uploads MP3 artifacts as multipart form data, retries transient
// failures with exponential backoff, and surfaces authentication failures
// as a sentinel so callers can stop sending requests for the session.
package transcription
