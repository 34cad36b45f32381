package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ProtectionLevels are the presets the obfuscation engine accepts.
func ProtectionLevels() []string {
	return []string{"light", "standard", "heavy", "max"}
}

// ProtectionLevel validates an obfuscation level name.
func ProtectionLevel(level string) error {
	for _, l := range ProtectionLevels() {
		if level == l {
			return nil
		}
	}
	return fmt.Errorf("level must be one of: %s", strings.Join(ProtectionLevels(), ", "))
}

const maxUsernameLength = 64

// Username validates a whitelist entry username.
func Username(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", maxUsernameLength)
	}
	return nil
}

var licenseKeyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// LicenseKey validates the XXXX-XXXX-XXXX-XXXX license key format.
func LicenseKey(key string) error {
	if !licenseKeyPattern.MatchString(key) {
		return fmt.Errorf("license key must be four hyphen-separated groups of four uppercase alphanumerics")
	}
	return nil
}
