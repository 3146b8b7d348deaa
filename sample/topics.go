// Package sample holds the demo topics served by bridgehost.
package sample

import (
	"log/slog"

	"github.com/mbocsi/nativebridge/bridge"
)

const (
	TestTopic   = "testTopic"
	GaConfTopic = "gaConf"

	// GaTrackingID is the analytics configuration id handed out on gaConf.
	GaTrackingID = "35009a79-1a05-49d7-b876-2b884d0f825b"
)

type TestIn struct {
	Text string `json:"text" bridge:"required"`
}

type TestOut struct {
	Value string `json:"value"`
}

// GaConfIn carries no fields; any object requests the configuration.
type GaConfIn struct{}

type GaConfOut struct {
	ID string `json:"id"`
}

// Register installs the sample handlers on c. testTopic echoes text back as
// value on the same topic; gaConf replies with the analytics configuration.
func Register(c *bridge.Connection) error {
	err := bridge.HandleJSON(c, TestTopic, func(in TestIn, c *bridge.Connection) {
		if err := c.Send(TestTopic, TestOut{Value: in.Text}); err != nil {
			slog.Warn("Failed to echo sample topic", "topic", TestTopic, "error", err.Error())
		}
	})
	if err != nil {
		return err
	}
	return bridge.HandleJSON(c, GaConfTopic, func(_ GaConfIn, c *bridge.Connection) {
		if err := c.Send(GaConfTopic, GaConfOut{ID: GaTrackingID}); err != nil {
			slog.Warn("Failed to send analytics configuration", "topic", GaConfTopic, "error", err.Error())
		}
	})
}
