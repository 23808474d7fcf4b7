// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package validation

import (
	"strings"
	"testing"
)

type sortQuery struct {
	Sort string `validate:"omitempty,activity_column"`
}

type callbackQuery struct {
	Code  string `validate:"required,max=512"`
	State string `validate:"required"`
}

type idQuery struct {
	ID   string `validate:"omitempty,numeric_id"`
	User string `validate:"required,user_id"`
}

func TestValidateStruct_ActivityColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sort  string
		valid bool
	}{
		{"", true},
		{"distance", true},
		{"start_date_local", true},
		{"moving_time", true},
		{"heartrate", false},
		{"distance;drop", false},
	}
	for _, tt := range tests {
		err := ValidateStruct(&sortQuery{Sort: tt.sort})
		if (err == nil) != tt.valid {
			t.Errorf("sort=%q: valid=%v, err=%v", tt.sort, tt.valid, err)
		}
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&callbackQuery{})
	if err == nil {
		t.Fatal("expected errors for empty callback")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Code: Code is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

func TestValidateStruct_SingleError(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&callbackQuery{Code: strings.Repeat("c", 600), State: "s"})
	if err == nil {
		t.Fatal("expected max error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Message != "Code must be at most 512 characters" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "Code" || apiErr.Details["tag"] != "max" {
		t.Errorf("details = %v", apiErr.Details)
	}
}

func TestValidateStruct_IDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		q     idQuery
		valid bool
	}{
		{"ok", idQuery{ID: "1234567890", User: "3f2a-bc"}, true},
		{"empty id allowed", idQuery{User: "u1"}, true},
		{"negative id", idQuery{ID: "-1", User: "u1"}, false},
		{"path traversal user", idQuery{User: "../etc"}, false},
		{"slash user", idQuery{User: "a/b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.q)
			if (err == nil) != tt.valid {
				t.Errorf("valid=%v, err=%v", tt.valid, err)
			}
		})
	}
}

func TestValidVar(t *testing.T) {
	t.Parallel()

	if !ValidVar("42", "numeric_id") {
		t.Error("42 should be a numeric id")
	}
	if ValidVar("4a2", "numeric_id") {
		t.Error("4a2 should not be a numeric id")
	}
	if !ValidVar("type", "activity_column") {
		t.Error("type should be a column")
	}
}

func TestRequestValidationError_Empty(t *testing.T) {
	t.Parallel()

	ve := &RequestValidationError{}
	if ve.Error() != "validation failed" {
		t.Errorf("Error() = %q", ve.Error())
	}
	if ve.ToAPIError().Message != "Validation failed" {
		t.Errorf("message = %q", ve.ToAPIError().Message)
	}
}
