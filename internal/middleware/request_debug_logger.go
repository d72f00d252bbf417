package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxBodyLogSize = 1024 // Limit body size logged (1KB)

var sensitiveBodyPattern = regexp.MustCompile(`(?i)("(?:password|client_?secret|secret|access_?token|refresh_?token|token)"\s*:\s*")[^"]*(")`)

// RequestDebugLogger logs headers and body of each request when the logger is at debug level,
// then the response status and latency.
func RequestDebugLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger := GetRequestFileLogger(c)
		startTime := time.Now()

		if logger.Core().Enabled(zapcore.DebugLevel) {
			headersMap := make(map[string]string)
			c.Request().Header.VisitAll(func(key, value []byte) {
				headerKey := string(key)
				if headerKey == AuthorizationHeader || headerKey == "Cookie" {
					headersMap[headerKey] = "*** HIDDEN ***"
				} else {
					headersMap[headerKey] = string(value)
				}
			})

			logger.Debug("Incoming Request Details",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Any("headers", headersMap),
				zap.String("body", describeBody(c.BodyRaw(), string(c.Request().Header.ContentType()))),
			)
		}

		err := c.Next()

		logger.Debug("Request Handled",
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("response_body", truncateBody(c.Response().Body())),
		)
		return err
	}
}

func describeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return "(Empty Body)"
	}
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "text") || strings.Contains(contentType, "form") {
		return truncateBody(body)
	}
	return fmt.Sprintf("(Binary or non-text body, size: %d bytes)", len(body))
}

func truncateBody(body []byte) string {
	if len(body) == 0 {
		return "(Empty Body)"
	}
	if len(body) > maxBodyLogSize {
		return sanitizeSensitiveData(string(body[:maxBodyLogSize])) + "... (truncated)"
	}
	return sanitizeSensitiveData(string(body))
}

// sanitizeSensitiveData blanks out credential values in a JSON body.
func sanitizeSensitiveData(body string) string {
	return sensitiveBodyPattern.ReplaceAllString(body, `$1***$2`)
}
