package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// maxUploadBytes bounds a multipart image upload on /ocr.
var maxUploadBytes int64 = 32 << 20

// SetMaxUploadBytes configures the upload limit; non-positive restores 32 MiB.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 32 << 20
		return
	}
	maxUploadBytes = n
}

// ocrTimeout bounds a non-streaming /ocr request. Zero means no additional
// timeout beyond server/connection timeouts.
var ocrTimeout = int64(0) // seconds

// SetOCRTimeoutSeconds sets the blocking /ocr timeout in seconds (0 disables).
func SetOCRTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	ocrTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
