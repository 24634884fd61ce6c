package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobtrack-engine/internal/config"
)

const (
	// “Service” groups your app’s secrets in the OS keychain.
	KeyringService = "jobtrack"

	geminiAccount = "jobtrack:gemini-api-key"
)

// GetGeminiAPIKey reads the key from the OS keyring, falling back to the
// GEMINI_API_KEY env var for headless hosts without a keychain.
func GetGeminiAPIKey() (string, error) {
	if key, err := keyring.Get(KeyringService, geminiAccount); err == nil && strings.TrimSpace(key) != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		return key, nil
	}
	return "", errors.New("Gemini API key not found (run `engine setup-key` or set GEMINI_API_KEY)")
}

func SetGeminiAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, geminiAccount, key)
}

func DeleteGeminiAPIKey() error {
	return keyring.Delete(KeyringService, geminiAccount)
}

func GetIMAPPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := strings.TrimSpace(os.Getenv("IMAP_APP_PASSWORD")); pw != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it in keychain or via env)")
}

func SetIMAPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"jobtrack:imap:%s@%s",
		cfg.Mail.IMAP.Username,
		cfg.Mail.IMAP.Host,
	)
}
