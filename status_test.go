package avdec

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "Success"},
		{StatusFrameFinished, "FrameFinished"},
		{StatusEOF, "EOF"},
		{StatusReadError, "ReadError"},
		{StatusDecodeError, "DecodeError"},
		{StatusRestartRequired, "RestartRequired"},
		{Status(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
