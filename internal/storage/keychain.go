package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the generic-password service entries are filed under
const DefaultKeychainService = "kitsune-oauth"

// keychainItemNotFound is the exit status of `security` when no item matches
const keychainItemNotFound = 44

// runner executes the macOS `security` tool. Replaced in tests.
type runner func(ctx context.Context, args ...string) ([]byte, error)

func runSecurity(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "security", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("security %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Keychain stores every key as a generic password in the macOS login
// keychain, using the key as the account name.
type Keychain struct {
	service string
	run     runner
}

func NewKeychain(service string) *Keychain {
	if service == "" {
		service = DefaultKeychainService
	}
	return &Keychain{service: service, run: runSecurity}
}

func (k *Keychain) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := k.run(ctx, "find-generic-password", "-s", k.service, "-a", key, "-w")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve %s from keychain: %w", key, err)
	}
	return bytes.TrimRight(out, "\n"), nil
}

func (k *Keychain) Set(ctx context.Context, key string, value []byte) error {
	// -U updates the item in place when it already exists
	_, err := k.run(ctx, "add-generic-password", "-s", k.service, "-a", key, "-w", string(value), "-U")
	if err != nil {
		return fmt.Errorf("failed to update keychain item %s: %w", key, err)
	}
	return nil
}

func (k *Keychain) Delete(ctx context.Context, key string) error {
	_, err := k.run(ctx, "delete-generic-password", "-s", k.service, "-a", key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete keychain item %s: %w", key, err)
	}
	return nil
}
