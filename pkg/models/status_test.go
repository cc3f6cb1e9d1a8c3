package models

import "testing"

func TestJobStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   bool
	}{
		{"pending is valid", JobStatusPending, true},
		{"running is valid", JobStatusRunning, true},
		{"completed is valid", JobStatusCompleted, true},
		{"failed is valid", JobStatusFailed, true},
		{"empty string is invalid", JobStatus(""), false},
		{"unknown status is invalid", JobStatus("cancelled"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("JobStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("JobStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestStepStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status StepStatus
		want   bool
	}{
		{"pending is valid", StepStatusPending, true},
		{"running is valid", StepStatusRunning, true},
		{"completed is valid", StepStatusCompleted, true},
		{"failed is valid", StepStatusFailed, true},
		{"empty string is invalid", StepStatus(""), false},
		{"typo is invalid", StepStatus("complete"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("StepStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestGapFixDisposition_Applied(t *testing.T) {
	tests := []struct {
		disposition GapFixDisposition
		want        bool
	}{
		{GapFixPending, false},
		{GapFixAccepted, true},
		{GapFixEdited, true},
		{GapFixRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.disposition), func(t *testing.T) {
			if got := tt.disposition.Applied(); got != tt.want {
				t.Errorf("GapFixDisposition(%q).Applied() = %v, want %v", tt.disposition, got, tt.want)
			}
		})
	}
}

func TestGapFixDisposition_NoAcceptAlias(t *testing.T) {
	// "accept" and "edit" are not valid dispositions; the canonical values
	// are the past-participle forms.
	if GapFixDisposition("accept").Valid() {
		t.Error(`"accept" should not be a valid disposition`)
	}
	if GapFixDisposition("edit").Valid() {
		t.Error(`"edit" should not be a valid disposition`)
	}
	if !GapFixAccepted.Valid() || !GapFixEdited.Valid() {
		t.Error("canonical dispositions should be valid")
	}
}

func TestGapFix_Correction(t *testing.T) {
	tests := []struct {
		name string
		fix  GapFix
		want string
	}{
		{
			"accepted uses suggestion",
			GapFix{Suggestion: "add a limit", Disposition: GapFixAccepted},
			"add a limit",
		},
		{
			"edited uses final text",
			GapFix{Suggestion: "add a limit", FinalText: "limit to 10", Disposition: GapFixEdited},
			"limit to 10",
		},
		{
			"edited without final text falls back to suggestion",
			GapFix{Suggestion: "add a limit", Disposition: GapFixEdited},
			"add a limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fix.Correction(); got != tt.want {
				t.Errorf("Correction() = %q, want %q", got, tt.want)
			}
		})
	}
}
