// rollprobe is a small interactive check against a running server: it
// logs in, runs an adjustment, optionally sends a gift, and prints every
// frame it receives (including pushes) for a short observation window.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

func main() {
	wsURL := os.Getenv("ROLLHOUSE_WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:8090/ws"
	}
	deviceID := os.Getenv("PROBE_DEVICE_ID")
	if deviceID == "" {
		deviceID = "probe-device"
	}
	giftTo := os.Getenv("PROBE_GIFT_TO")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	send := func(t gamedto.MessageType, corr string, payload any) {
		env, err := gamedto.NewEnvelope(t, corr, payload)
		if err != nil {
			log.Fatalf("encode %s: %v", t, err)
		}
		if err := wsjson.Write(ctx, conn, env); err != nil {
			log.Fatalf("write %s: %v", t, err)
		}
	}

	send(gamedto.TypeLogin, "probe-1", gamedto.LoginRequest{DeviceID: deviceID})
	send(gamedto.TypeUpdateResources, "probe-2", gamedto.UpdateResourcesRequest{
		ResourceType:  string(gamedto.ResourceCoins),
		ResourceValue: 100,
	})
	if giftTo != "" {
		send(gamedto.TypeSendGift, "probe-3", gamedto.SendGiftRequest{
			FriendPlayerID: giftTo,
			ResourceType:   string(gamedto.ResourceCoins),
			ResourceValue:  10,
		})
	}

	// Observe responses and any pushes for a short window.
	deadline := time.After(10 * time.Second)
	frames := make(chan gamedto.Envelope)
	go func() {
		for {
			var env gamedto.Envelope
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				close(frames)
				return
			}
			frames <- env
		}
	}()
	for {
		select {
		case env, ok := <-frames:
			if !ok {
				return
			}
			fmt.Printf("frame type=%s corr=%s payload=%s\n", env.Type, env.CorrelationID, string(env.Payload))
		case <-deadline:
			return
		}
	}
}
