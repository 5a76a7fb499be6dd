// Package main runs a demo WebSocket client for the live location feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func post(base, path string, body []byte, out any) error {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	var vehicle struct {
		ID int64 `json:"id"`
	}
	plate := fmt.Sprintf("WS-%d", time.Now().Unix()%100000)
	if err := post(base, "/v1/vehicles", []byte(`{"licensePlate":"`+plate+`","make":"Ford","model":"Transit","year":2022,"vehicleType":"van"}`), &vehicle); err != nil {
		log.Fatal(err)
	}
	log.Printf("Vehicle ID: %d", vehicle.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/locations/ws",
		RawQuery: fmt.Sprintf("entityType=corporate_vehicle&entityId=%d", vehicle.ID)}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	// Feed a few samples while listening
	go func() {
		for i := 0; i < 5; i++ {
			body := fmt.Sprintf(`{"entityType":"corporate_vehicle","entityId":%d,"latitude":%f,"longitude":%f}`,
				vehicle.ID, 40.71+float64(i)*0.001, -74.00+float64(i)*0.001)
			var pt map[string]any
			if err := post(base, "/v1/locations", []byte(body), &pt); err != nil {
				log.Printf("post location: %v", err)
			}
			time.Sleep(500 * time.Millisecond)
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	_ = c.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var evt map[string]any
		if err := c.ReadJSON(&evt); err != nil {
			log.Printf("read: %v", err)
			return
		}
		b, _ := json.Marshal(evt)
		log.Printf("event: %s", b)
	}
}
