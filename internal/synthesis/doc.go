// Package synthesis turns segment translations into playable audio.
// The client talks to an external text-to-speech service with retries,
// backoff, and concurrency limiting; the service layer decodes the
// returned WAV bytes, trims leading and trailing silence, and stores
// the result in the segment buffer store.
package synthesis
