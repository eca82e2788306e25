package client

import (
	"context"
	"net/http"

	"github.com/goliatone/go-whatsflow/core"
)

func (c *Client) ListDevices(ctx context.Context) ([]core.Device, error) {
	devices, err := fetchData[[]core.Device](ctx, c, request{
		method: http.MethodGet,
		path:   "/devices",
	})
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []core.Device{}
	}
	return devices, nil
}

func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) (core.DeviceStatus, error) {
	if err := requireField("device_id", deviceID); err != nil {
		return core.DeviceStatus{}, err
	}
	return fetchData[core.DeviceStatus](ctx, c, request{
		method: http.MethodGet,
		path:   "/devices/" + escapeID(deviceID) + "/status",
	})
}
