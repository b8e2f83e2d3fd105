package rpc

import "testing"

func TestMessageTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		wantErr bool
	}{
		{"valid Detect", MsgDetect, false},
		{"valid GetRelatedBundleVariable", MsgGetRelatedBundleVariable, false},
		{"zero value is invalid", MessageType(0), true},
		{"out of range is invalid", MessageType(9999), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msgType.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageTypeString(t *testing.T) {
	if got := MsgApply.String(); got != "Apply" {
		t.Errorf("expected Apply, got %s", got)
	}
	if got := MessageType(9999).String(); got == "" {
		t.Error("expected a non-empty fallback string for an unknown type")
	}
}

func TestElevatedMessageTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		msgType ElevatedMessageType
		wantErr bool
	}{
		{"valid ExecuteMsiPackage", ElevatedMsgExecuteMsiPackage, false},
		{"valid SessionEnd", ElevatedMsgSessionEnd, false},
		{"zero value is invalid", ElevatedMessageType(0), true},
		{"out of range is invalid", ElevatedMessageType(9999), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msgType.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
