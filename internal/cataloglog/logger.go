// Package cataloglog provides centralized logging for the catalog core.
package cataloglog

import (
	"log"
	"os"
)

var logger = log.New(os.Stderr, "[catalog] ", log.LstdFlags|log.Lshortfile)

// LogError logs an error with context. Per the propagation policy in
// §7, only Internal failures should ever reach this function —
// NotFound and PermissionDenied are normal control flow and must not be
// logged as errors by callers.
func LogError(context string, err error) {
	if err != nil {
		logger.Printf("ERROR: %s: %v", context, err)
	}
}

func LogInfo(message string) {
	logger.Printf("INFO: %s", message)
}

func LogWarning(message string) {
	logger.Printf("WARN: %s", message)
}

func LogDebug(message string) {
	logger.Printf("DEBUG: %s", message)
}
