// Package ipc provides the host bridge protocol between sandboxed web content
// and the desktop host over a per-user Unix domain socket.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/wireapp/wire-desktop/internal/account"
)

// MessageType identifies the type of IPC message.
type MessageType string

const (
	// Webview events (preload -> host)
	MsgUnreadCountChanged MessageType = "UnreadCountChanged"
	MsgPageLoaded         MessageType = "PageLoaded"
	MsgNavigate           MessageType = "Navigate"
	MsgNotificationClick  MessageType = "NotificationClick"
	MsgSSOCallback        MessageType = "SSOCallback"
	MsgSaveArchive        MessageType = "SaveArchive"

	// Sidebar and menu operations
	MsgGetAccounts     MessageType = "GetAccounts"
	MsgSwitchAccount   MessageType = "SwitchAccount"
	MsgAddAccount      MessageType = "AddAccount"
	MsgDeleteAccount   MessageType = "DeleteAccount"
	MsgShowContextMenu MessageType = "ShowContextMenu"
	MsgHideContextMenu MessageType = "HideContextMenu"
	MsgSelectMenuItem  MessageType = "SelectMenuItem"
	MsgGetBadgeCount   MessageType = "GetBadgeCount"
	MsgGetStatus       MessageType = "GetStatus"

	// Response types
	MsgOK    MessageType = "OK"
	MsgError MessageType = "Error"
)

// Request represents an IPC request from client to server.
type Request struct {
	Type      MessageType     `json:"type"`
	AccountID string          `json:"account_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Response represents an IPC response from server to client.
type Response struct {
	Type    MessageType     `json:"type"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UnreadCountData is the payload of UnreadCountChanged.
type UnreadCountData struct {
	Count int `json:"count"`
}

// NavigateData is the payload of Navigate.
type NavigateData struct {
	URL string `json:"url"`
}

// NavigateResult tells the webview what to do with a navigation.
type NavigateResult struct {
	Allowed  bool `json:"allowed"`
	External bool `json:"external"`
}

// SSOCallbackData carries the token and state of an SSO redirect.
type SSOCallbackData struct {
	Token string `json:"token"`
	State string `json:"state"`
}

// SaveArchiveData is the payload of SaveArchive. An empty Target uses the
// configured backup directory.
type SaveArchiveData struct {
	Target string `json:"target,omitempty"`
}

// SaveArchiveResult reports where the archive was written.
type SaveArchiveResult struct {
	Path string `json:"path"`
}

// AddAccountData is the payload of AddAccount.
type AddAccountData struct {
	SSOCode string `json:"sso_code,omitempty"`
}

// ContextMenuData is the payload of ShowContextMenu.
type ContextMenuData struct {
	X              int  `json:"x"`
	Y              int  `json:"y"`
	IsAtLeastAdmin bool `json:"is_at_least_admin"`
}

// MenuItemData is the payload of SelectMenuItem.
type MenuItemData struct {
	Item string `json:"item"`
}

// AccountsData lists the account records.
type AccountsData struct {
	Accounts        []account.Account `json:"accounts"`
	MaximumAccounts int               `json:"maximum_accounts"`
	CanAddAccount   bool              `json:"can_add_account"`
}

type BadgeCountData struct {
	Total int `json:"total"`
}

// StatusData describes the running host.
type StatusData struct {
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	AccountCount     int    `json:"account_count"`
	VisibleAccountID string `json:"visible_account_id,omitempty"`
	BadgeCount       int    `json:"badge_count"`
	SSOListening     bool   `json:"sso_listening"`
	SocketPath       string `json:"socket_path"`
}

// NewRequest creates a new IPC request.
func NewRequest(msgType MessageType) *Request {
	return &Request{Type: msgType}
}

// NewAccountRequest creates a request addressed to one account. A nil
// payload is omitted.
func NewAccountRequest(msgType MessageType, accountID string, payload interface{}) (*Request, error) {
	req := &Request{Type: msgType, AccountID: accountID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		req.Data = data
	}
	return req, nil
}

// NewOKResponse creates a success response. A nil payload is omitted.
func NewOKResponse(payload interface{}) *Response {
	resp := &Response{Type: MsgOK, Success: true}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("failed to encode response: %v", err))
		}
		resp.Data = data
	}
	return resp
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{Type: MsgError, Success: false, Error: err}
}

// Encode serializes a request to JSON.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Encode serializes a response to JSON.
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest deserializes a request from JSON.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, fmt.Errorf("request has no type")
	}
	return &req, nil
}

// DecodeResponse deserializes a response from JSON.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Payload decodes the request data into v.
func (r *Request) Payload(v interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%s request has no data", r.Type)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", r.Type, err)
	}
	return nil
}

// Result decodes the response data into v. A response without data leaves v
// untouched.
func (r *Response) Result(v interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
