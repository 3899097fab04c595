package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// shareTokenBytes is the entropy of a share link token (256 bits).
const shareTokenBytes = 32

// GetUserID retrieves the user ID from the Gin context, assuming it is stored as "userID" in context.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		if idStr, ok := userID.(string); ok {
			return idStr
		}
	}
	return ""
}

// UUID Generation
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShareToken returns an opaque, URL-safe token read from crypto/rand.
// The token is the only credential behind a public tracking link.
func GenerateShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BuildShareURL joins the public base URL and a share token.
func BuildShareURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/track/" + token
}

// String Utilities
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}

// FirstName returns the first word of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// NormalizePhoneNumber keeps the digits of a phone number and prefixes "+",
// so the same number typed with different punctuation compares equal.
func NormalizePhoneNumber(phone string) string {
	cleaned := nonDigitRegex.ReplaceAllString(phone, "")
	if cleaned == "" {
		return ""
	}
	return "+" + cleaned
}

func MaskPhoneNumber(phone string) string {
	cleaned := nonDigitRegex.ReplaceAllString(phone, "")
	if len(cleaned) < 4 {
		return phone
	}

	visible := cleaned[len(cleaned)-4:]
	masked := strings.Repeat("*", len(cleaned)-4) + visible
	return "+" + masked
}

func FormatDuration(duration time.Duration) string {
	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(duration.Hours()), int(duration.Minutes())%60)
}
