package types

import "testing"

func TestBatchResponse_Valid(t *testing.T) {
	tests := []struct {
		name string
		resp *BatchResponse
		want bool
	}{
		{"nil", nil, false},
		{"all accepted", &BatchResponse{ItemsReceived: 3, ItemsAccepted: 3}, true},
		{"one error", &BatchResponse{ItemsReceived: 2, ItemsAccepted: 1, Errors: []BatchError{{Index: 1, StatusCode: 500}}}, true},
		{"accepted exceeds received", &BatchResponse{ItemsReceived: 1, ItemsAccepted: 2}, false},
		{"error count mismatch", &BatchResponse{ItemsReceived: 3, ItemsAccepted: 1, Errors: []BatchError{{Index: 0, StatusCode: 500}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.resp.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}
