// Package embeddings turns text into fixed-dimension vectors.
//
// Providers wrap a single backend (OpenAI via langchaingo, Gemini, a TEI
// server, or local FastEmbed ONNX models) and make one request per call.
// Client sits in front of a Provider and owns batching, rate limiting and
// retries, so callers never loop on transient failures themselves.
package embeddings
