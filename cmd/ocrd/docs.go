package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/ocrd/docs.go -o docs`.
//
// @title           ocrd API
// @version         1.0
// @description     Web front end for image-to-text OCR with streaming generation, cancellation and saved sessions.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
