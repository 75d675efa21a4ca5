package ipc

import (
	"testing"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(MsgGetStatus)
	if req.Type != MsgGetStatus {
		t.Errorf("expected type %q, got %q", MsgGetStatus, req.Type)
	}
	if req.AccountID != "" || len(req.Data) != 0 {
		t.Errorf("expected empty request, got %+v", req)
	}
}

func TestRequestEncodeDecode(t *testing.T) {
	original, err := NewAccountRequest(MsgUnreadCountChanged, "acc-1", &UnreadCountData{Count: 7})
	if err != nil {
		t.Fatalf("NewAccountRequest() error = %v", err)
	}

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}

	if decoded.Type != original.Type || decoded.AccountID != "acc-1" {
		t.Errorf("mismatch: got %+v", decoded)
	}
	var payload UnreadCountData
	if err := decoded.Payload(&payload); err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if payload.Count != 7 {
		t.Errorf("expected count 7, got %d", payload.Count)
	}
}

func TestDecodeRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "hello"},
		{"missing type", `{"account_id":"a"}`},
		{"wrong shape", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRequest([]byte(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRequestPayload_Missing(t *testing.T) {
	req := NewRequest(MsgNavigate)
	var nav NavigateData
	if err := req.Payload(&nav); err == nil {
		t.Error("expected error for request without data")
	}
}

func TestNewOKResponse(t *testing.T) {
	resp := NewOKResponse(&BadgeCountData{Total: 4})
	if resp.Type != MsgOK || !resp.Success || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}
	var badge BadgeCountData
	if err := resp.Result(&badge); err != nil || badge.Total != 4 {
		t.Errorf("Result() = %+v, %v", badge, err)
	}

	empty := NewOKResponse(nil)
	if len(empty.Data) != 0 {
		t.Errorf("nil payload should be omitted, got %s", empty.Data)
	}
	if err := empty.Result(&badge); err != nil {
		t.Errorf("Result() on empty data = %v", err)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something went wrong")
	if resp.Type != MsgError {
		t.Errorf("expected type %q, got %q", MsgError, resp.Type)
	}
	if resp.Success {
		t.Error("expected Success = false")
	}
	if resp.Error != "something went wrong" {
		t.Errorf("expected error %q, got %q", "something went wrong", resp.Error)
	}
}

func TestResponseEncodeDecode(t *testing.T) {
	original := NewOKResponse(&StatusData{Version: "v3.36.0", AccountCount: 2})
	data, err := original.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeResponse(data)
	if err != nil {
		t.Fatal(err)
	}
	var status StatusData
	if err := decoded.Result(&status); err != nil {
		t.Fatal(err)
	}
	if status.Version != "v3.36.0" || status.AccountCount != 2 {
		t.Errorf("unexpected status %+v", status)
	}
}
