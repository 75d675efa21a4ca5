package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wireapp/wire-desktop/internal/constants"
)

// Client connects to the bridge server via Unix domain socket.
type Client struct {
	timeout    time.Duration
	socketPath string
}

// NewClient creates a new IPC client for socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		timeout:    constants.BridgeClientTimeout,
		socketPath: socketPath,
	}
}

// SetTimeout sets the connection timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge at %s: %w", c.socketPath, err)
	}
	return conn, nil
}

// Send sends a request and receives the response. A response with
// Success=false is returned as an error.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Set deadline for the entire operation
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	data, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := DecodeResponse(respData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !resp.Success {
		return resp, fmt.Errorf("server error: %s", resp.Error)
	}
	return resp, nil
}

// call sends msgType with payload and decodes the result into out.
func (c *Client) call(ctx context.Context, msgType MessageType, accountID string, payload, out interface{}) error {
	req, err := NewAccountRequest(msgType, accountID, payload)
	if err != nil {
		return err
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if out != nil {
		if err := resp.Result(out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", msgType, err)
		}
	}
	return nil
}

// GetStatus retrieves the host status.
func (c *Client) GetStatus(ctx context.Context) (*StatusData, error) {
	var status StatusData
	if err := c.call(ctx, MsgGetStatus, "", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetAccounts retrieves the account list.
func (c *Client) GetAccounts(ctx context.Context) (*AccountsData, error) {
	var data AccountsData
	if err := c.call(ctx, MsgGetAccounts, "", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AddAccount requests a new unbound account, optionally for an SSO code.
func (c *Client) AddAccount(ctx context.Context, ssoCode string) (*AccountsData, error) {
	var data AccountsData
	if err := c.call(ctx, MsgAddAccount, "", &AddAccountData{SSOCode: ssoCode}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) SwitchAccount(ctx context.Context, accountID string) error {
	return c.call(ctx, MsgSwitchAccount, accountID, nil, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	return c.call(ctx, MsgDeleteAccount, accountID, nil, nil)
}

// UnreadCountChanged reports the unread count of one account.
func (c *Client) UnreadCountChanged(ctx context.Context, accountID string, count int) error {
	return c.call(ctx, MsgUnreadCountChanged, accountID, &UnreadCountData{Count: count}, nil)
}

func (c *Client) PageLoaded(ctx context.Context, accountID string) error {
	return c.call(ctx, MsgPageLoaded, accountID, nil, nil)
}

// Navigate asks whether the webview of accountID may load url.
func (c *Client) Navigate(ctx context.Context, accountID, url string) (*NavigateResult, error) {
	var result NavigateResult
	if err := c.call(ctx, MsgNavigate, accountID, &NavigateData{URL: url}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) NotificationClick(ctx context.Context, accountID string) error {
	return c.call(ctx, MsgNotificationClick, accountID, nil, nil)
}

// SSOCallback forwards an SSO redirect received outside the loopback
// listener, e.g. from a custom URL scheme handler.
func (c *Client) SSOCallback(ctx context.Context, token, state string) error {
	return c.call(ctx, MsgSSOCallback, "", &SSOCallbackData{Token: token, State: state}, nil)
}

// SaveArchive exports the data of accountID and returns the archive path.
func (c *Client) SaveArchive(ctx context.Context, accountID, target string) (string, error) {
	var result SaveArchiveResult
	if err := c.call(ctx, MsgSaveArchive, accountID, &SaveArchiveData{Target: target}, &result); err != nil {
		return "", err
	}
	return result.Path, nil
}

// ShowContextMenu opens the account context menu and returns its items.
func (c *Client) ShowContextMenu(ctx context.Context, accountID string, menu ContextMenuData) ([]string, error) {
	var items []string
	if err := c.call(ctx, MsgShowContextMenu, accountID, &menu, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) HideContextMenu(ctx context.Context) error {
	return c.call(ctx, MsgHideContextMenu, "", nil, nil)
}

// SelectMenuItem triggers an item of the open context menu.
func (c *Client) SelectMenuItem(ctx context.Context, item string) error {
	return c.call(ctx, MsgSelectMenuItem, "", &MenuItemData{Item: item}, nil)
}

// GetBadgeCount retrieves the aggregate unread count.
func (c *Client) GetBadgeCount(ctx context.Context) (int, error) {
	var data BadgeCountData
	if err := c.call(ctx, MsgGetBadgeCount, "", nil, &data); err != nil {
		return 0, err
	}
	return data.Total, nil
}

// IsServiceRunning checks if the bridge server is reachable.
func (c *Client) IsServiceRunning(ctx context.Context) bool {
	_, err := c.GetStatus(ctx)
	return err == nil
}
