// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"testing"
)

// =============================================================================
// NewSpinner Tests
// =============================================================================

func TestNewSpinner_ReturnsNonNil(t *testing.T) {
	spin := NewSpinner("Publishing...")
	if spin == nil {
		t.Fatal("NewSpinner returned nil")
	}
}

func TestNewSpinner_SetsMessage(t *testing.T) {
	spin := NewSpinner("Compiling configuration")
	if spin.message != "Compiling configuration" {
		t.Errorf("expected message 'Compiling configuration', got %q", spin.message)
	}
}

func TestNewSpinner_DefaultsToDotsType(t *testing.T) {
	spin := NewSpinner("Publishing...")
	if spin.spinType != SpinnerDots {
		t.Errorf("expected SpinnerDots, got %v", spin.spinType)
	}
}

func TestSpinner_WithType(t *testing.T) {
	spin := NewSpinner("Publishing...").WithType(SpinnerCompass)
	if spin.spinType != SpinnerCompass {
		t.Errorf("expected SpinnerCompass, got %v", spin.spinType)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestSpinner_StartStop(t *testing.T) {
	spin := NewSpinner("Publishing...")
	spin.Start()
	spin.Stop()

	// Stop on a stopped spinner is a no-op, not a double close.
	spin.Stop()
}

func TestSpinner_StartTwiceIsIdempotent(t *testing.T) {
	spin := NewSpinner("Publishing...")
	spin.Start()
	spin.Start()
	spin.Stop()
}

func TestSpinner_UpdateMessage(t *testing.T) {
	spin := NewSpinner("Compiling")
	spin.UpdateMessage("Uploading")
	if spin.message != "Uploading" {
		t.Errorf("message = %q, want Uploading", spin.message)
	}
}

func TestSpinner_PlainMode(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	spin := NewSpinner("Publishing...")
	spin.Start()
	// No goroutine runs in plain mode; Stop must not block on done.
	spin.Stop()
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_ReturnsFnError(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	sentinel := errors.New("upload failed")
	if err := WithSpinner("Publishing", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("WithSpinner() error = %v, want %v", err, sentinel)
	}
	if err := WithSpinner("Publishing", func() error { return nil }); err != nil {
		t.Errorf("WithSpinner() error = %v, want nil", err)
	}
}
