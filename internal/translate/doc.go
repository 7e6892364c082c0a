// Package translate defines the translation collaborator contract with an
// HTTP client for a LibreTranslate-style server and a mock translator.
package translate
