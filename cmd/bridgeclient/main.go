// Command bridgeclient acts as a headless embedded document: it connects to a
// bridge host, sends one payload and prints whatever comes back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mbocsi/nativebridge/client"
	"github.com/mbocsi/nativebridge/discovery"
	"github.com/mbocsi/nativebridge/proto"
)

func main() {
	addr := flag.String("url", "", "bridge websocket URL; discovered over mDNS when empty")
	topic := flag.String("topic", "testTopic", "topic to send on")
	data := flag.String("data", `{"text":"hello"}`, "JSON data member")
	raw := flag.String("raw", "", "send this text as is instead of an envelope")
	wait := flag.Duration("wait", 2*time.Second, "how long to wait for replies")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(*addr, *topic, *data, *raw, *wait); err != nil {
		fmt.Fprintf(os.Stderr, "bridgeclient: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, topic, data, raw string, wait time.Duration) error {
	if addr == "" {
		svc, err := discovery.Discover(5 * time.Second)
		if err != nil {
			return err
		}
		addr = svc.URL()
	}

	c := client.NewClient()
	if err := c.Connect(addr); err != nil {
		return err
	}
	defer c.Close()

	c.On(topic, func(d json.RawMessage) {
		fmt.Printf("%s: %s\n", topic, d)
	})
	c.OnErrors(func(t string, errs []proto.ProtocolError) {
		for _, e := range errs {
			fmt.Printf("%s: error %d: %s\n", t, e.Code, e.Message)
		}
	})
	go c.Run()

	if raw != "" {
		if err := c.SendText(raw); err != nil {
			return err
		}
	} else {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("data is not valid JSON: %s", data)
		}
		if err := c.Send(topic, json.RawMessage(data)); err != nil {
			return err
		}
	}

	time.Sleep(wait)
	return nil
}
