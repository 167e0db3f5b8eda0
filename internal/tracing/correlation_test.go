// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"testing"
)

func TestNewCorrelationID(t *testing.T) {
	id := NewCorrelationID()

	if !id.IsValid() {
		t.Errorf("expected valid UUID format, got %q", id)
	}
	if len(id) != 36 {
		t.Errorf("expected length 36, got %d", len(id))
	}
	if other := NewCorrelationID(); other == id {
		t.Errorf("expected unique IDs, got %q twice", id)
	}
}

func TestCorrelationID_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		id    CorrelationID
		valid bool
	}{
		{"valid UUID", CorrelationID("550e8400-e29b-41d4-a716-446655440000"), true},
		{"valid UUID uppercase", CorrelationID("550E8400-E29B-41D4-A716-446655440000"), true},
		{"empty", CorrelationID(""), false},
		{"too short", CorrelationID("550e8400-e29b-41d4"), false},
		{"missing hyphens", CorrelationID("550e8400e29b41d4a716446655440000"), false},
		{"invalid characters", CorrelationID("550e8400-e29b-41d4-a716-44665544000g"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestParseCorrelationID(t *testing.T) {
	id, ok := ParseCorrelationID("550e8400-e29b-41d4-a716-446655440000")
	if !ok || id.String() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("expected valid parse, got %q, %v", id, ok)
	}

	if id, ok := ParseCorrelationID("not-a-uuid"); ok || id != "" {
		t.Errorf("expected rejection, got %q, %v", id, ok)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if got := FromContextOrEmpty(context.Background()); got != "" {
		t.Errorf("expected empty ID from bare context, got %q", got)
	}

	id := NewCorrelationID()
	ctx := ToContext(context.Background(), id)
	if got := FromContextOrEmpty(ctx); got != id {
		t.Errorf("expected %q, got %q", id, got)
	}
}
