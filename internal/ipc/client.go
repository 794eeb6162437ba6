package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial daemon socket: %w", err)
	}
	return &Client{
		conn:   conn,
		client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) StartSession(req StartSessionRequest) (StartSessionResponse, error) {
	var resp StartSessionResponse
	err := c.client.Call("Kinescope.StartSession", req, &resp)
	return resp, err
}

func (c *Client) StopSession() (StopSessionResponse, error) {
	var resp StopSessionResponse
	err := c.client.Call("Kinescope.StopSession", StopSessionRequest{}, &resp)
	return resp, err
}

func (c *Client) PauseSession() (PauseSessionResponse, error) {
	var resp PauseSessionResponse
	err := c.client.Call("Kinescope.PauseSession", PauseSessionRequest{}, &resp)
	return resp, err
}

func (c *Client) ResumeSession() (ResumeSessionResponse, error) {
	var resp ResumeSessionResponse
	err := c.client.Call("Kinescope.ResumeSession", ResumeSessionRequest{}, &resp)
	return resp, err
}

func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.client.Call("Kinescope.Status", StatusRequest{}, &resp)
	return resp, err
}

func (c *Client) RecordingList(req RecordingListRequest) (RecordingListResponse, error) {
	var resp RecordingListResponse
	err := c.client.Call("Kinescope.RecordingList", req, &resp)
	return resp, err
}

func (c *Client) RecordingDescribe(id int64) (RecordingDescribeResponse, error) {
	var resp RecordingDescribeResponse
	err := c.client.Call("Kinescope.RecordingDescribe", RecordingDescribeRequest{ID: id}, &resp)
	return resp, err
}

func (c *Client) RecordingRemove(id int64, deleteFiles bool) (RecordingRemoveResponse, error) {
	var resp RecordingRemoveResponse
	err := c.client.Call("Kinescope.RecordingRemove", RecordingRemoveRequest{ID: id, DeleteFiles: deleteFiles}, &resp)
	return resp, err
}

func (c *Client) OverlayGet() (OverlayGetResponse, error) {
	var resp OverlayGetResponse
	err := c.client.Call("Kinescope.OverlayGet", OverlayGetRequest{}, &resp)
	return resp, err
}

func (c *Client) OverlaySet(req OverlaySetRequest) (OverlaySetResponse, error) {
	var resp OverlaySetResponse
	err := c.client.Call("Kinescope.OverlaySet", req, &resp)
	return resp, err
}

func (c *Client) OverlayClear() (OverlayClearResponse, error) {
	var resp OverlayClearResponse
	err := c.client.Call("Kinescope.OverlayClear", OverlayClearRequest{}, &resp)
	return resp, err
}

func (c *Client) LogTail(req LogTailRequest) (LogTailResponse, error) {
	var resp LogTailResponse
	err := c.client.Call("Kinescope.LogTail", req, &resp)
	return resp, err
}

func (c *Client) EventTail(req EventTailRequest) (EventTailResponse, error) {
	var resp EventTailResponse
	err := c.client.Call("Kinescope.EventTail", req, &resp)
	return resp, err
}

func (c *Client) CatalogHealth() (CatalogHealthResponse, error) {
	var resp CatalogHealthResponse
	err := c.client.Call("Kinescope.CatalogHealth", CatalogHealthRequest{}, &resp)
	return resp, err
}

func (c *Client) DatabaseHealth() (DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	err := c.client.Call("Kinescope.DatabaseHealth", DatabaseHealthRequest{}, &resp)
	return resp, err
}

func (c *Client) TestNotification() (TestNotificationResponse, error) {
	var resp TestNotificationResponse
	err := c.client.Call("Kinescope.TestNotification", TestNotificationRequest{}, &resp)
	return resp, err
}

func (c *Client) Shutdown() (ShutdownResponse, error) {
	var resp ShutdownResponse
	err := c.client.Call("Kinescope.Shutdown", ShutdownRequest{}, &resp)
	return resp, err
}
