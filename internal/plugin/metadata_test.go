package plugin

import (
	"errors"
	"testing"
)

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr error
	}{
		{
			name: "valid minimal",
			meta: Metadata{Name: "focus-timer", Version: "1.0.0"},
		},
		{
			name: "valid single letter name",
			meta: Metadata{Name: "a", Version: "0.1"},
		},
		{
			name: "valid with bounds and deps",
			meta: Metadata{
				Name: "word-count", Version: "2.3.1",
				Dependencies:  []string{"focus-timer"},
				MinAppVersion: "1.0", MaxAppVersion: "3.0",
			},
		},
		{
			name:    "missing name",
			meta:    Metadata{Version: "1.0.0"},
			wantErr: ErrMissingName,
		},
		{
			name:    "uppercase name",
			meta:    Metadata{Name: "FocusTimer", Version: "1.0.0"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "name with dots",
			meta:    Metadata{Name: "focus.timer", Version: "1.0.0"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "name ending with hyphen",
			meta:    Metadata{Name: "focus-", Version: "1.0.0"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "missing version",
			meta:    Metadata{Name: "focus-timer"},
			wantErr: ErrMissingVersion,
		},
		{
			name:    "non-numeric version",
			meta:    Metadata{Name: "focus-timer", Version: "1.0.0-beta"},
			wantErr: ErrInvalidVersion,
		},
		{
			name:    "bad min bound",
			meta:    Metadata{Name: "focus-timer", Version: "1.0.0", MinAppVersion: "one"},
			wantErr: ErrInvalidVersion,
		},
		{
			name:    "self dependency",
			meta:    Metadata{Name: "focus-timer", Version: "1.0.0", Dependencies: []string{"focus-timer"}},
			wantErr: ErrSelfDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetadataClone(t *testing.T) {
	meta := Metadata{
		Name:         "focus-timer",
		Version:      "1.0.0",
		Dependencies: []string{"a", "b"},
	}

	clone := meta.Clone()
	clone.Dependencies[0] = "mutated"

	if meta.Dependencies[0] != "a" {
		t.Error("Clone() shares the dependencies slice with the original")
	}
}

func TestMetadataDependsOn(t *testing.T) {
	meta := Metadata{Name: "b", Version: "1.0", Dependencies: []string{"a"}}

	if !meta.DependsOn("a") {
		t.Error("DependsOn(a) = false, want true")
	}
	if meta.DependsOn("c") {
		t.Error("DependsOn(c) = true, want false")
	}
}
