// Package settings stores readkit user settings: provider API keys and
// custom model prompts.
//
// Everything lives in the XDG data directory:
//
//	$XDG_DATA_HOME/readkit/  (default: ~/.local/share/readkit/)
//
// Files stored:
//   - auth.json     API keys, keyed by provider ID
//   - prompts.json  system prompt overrides, keyed by task ("translate")
//
// Both files are written with 0600 permissions.
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. READKIT_API_KEY environment variable
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName     = "readkit"
	fileName        = "auth.json"
	promptsFileName = "prompts.json"
)

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type is "api"; other values are kept but ignored.
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	// BaseURL overrides the provider endpoint (custom-openai, ollama).
	BaseURL string `json:"baseUrl,omitempty"`
	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`
}

// IsAPI returns true if this is an API key entry.
func (i *Info) IsAPI() bool {
	return i.Type == "api"
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File paths
// ---------------------------------------------------------------------------

// dataDir respects $XDG_DATA_HOME and falls back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath(name string) (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath(fileName)
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the readkit data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	store := make(Store)
	if err := readJSON(fileName, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	return writeJSON(fileName, store)
}

func readJSON(name string, v any) error {
	path, err := filePath(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(name string, v any) error {
	path, err := filePath(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the auth entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// Set stores an auth entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// SetAPIKey stores an API key for a provider. baseURL may be empty.
func SetAPIKey(providerID, key, baseURL string) error {
	return Set(providerID, &Info{Type: "api", Key: key, BaseURL: baseURL})
}

// GetAPIKey returns the stored API key for a provider, or "".
func GetAPIKey(providerID string) string {
	info := Get(providerID)
	if info == nil || !info.IsAPI() {
		return ""
	}
	return info.Key
}

// GetBaseURL returns the stored base URL for a provider, or "".
func GetBaseURL(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.BaseURL
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

// Prompt task names.
const (
	PromptTranslate = "translate"
)

// Prompt returns the user's override for a task's system prompt, or "".
func Prompt(task string) string {
	prompts := map[string]string{}
	if err := readJSON(promptsFileName, &prompts); err != nil {
		return ""
	}
	return prompts[task]
}

// SetPrompt stores a prompt override. An empty prompt removes it.
func SetPrompt(task, prompt string) error {
	prompts := map[string]string{}
	if err := readJSON(promptsFileName, &prompts); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", promptsFileName, err)
	}
	if prompts == nil {
		prompts = map[string]string{}
	}
	if prompt == "" {
		delete(prompts, task)
	} else {
		prompts[task] = prompt
	}
	return writeJSON(promptsFileName, prompts)
}
