package query

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusLoading, "loading"},
		{StatusSuccess, "success"},
		{StatusError, "error"},
		{StatusRefetching, "refetching"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	if !(State[int]{Status: StatusLoading}).IsLoading() {
		t.Error("loading state not reported as loading")
	}
	if !(State[int]{Status: StatusLoading}).IsFetching() {
		t.Error("loading state not reported as fetching")
	}
	if !(State[int]{Status: StatusRefetching}).IsFetching() {
		t.Error("refetching state not reported as fetching")
	}
	if (State[int]{Status: StatusSuccess}).IsFetching() {
		t.Error("success state reported as fetching")
	}
	if !(State[int]{Status: StatusError}).IsError() {
		t.Error("error state not reported as error")
	}
	if !(State[int]{Status: StatusSuccess}).IsSuccess() {
		t.Error("success state not reported as success")
	}
}
