// Command pcap-scan turns a monitor-mode Wi-Fi capture into tracker packets.
// Each packet is printed as a board frame line so the output can be replayed
// by the gateway in dev mode. With -post the scan is also sent to a running
// gateway's /api/scan endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/scan"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to read (required)")
	postURL  = flag.String("post", "", "Gateway base URL to POST the scan to, e.g. http://localhost:8080")
	limit    = flag.Int("max-aps", 0, "Only keep the strongest N access points (0 keeps all)")
)

type scanAP struct {
	BSSID   string `json:"bssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel"`
}

type scanRequest struct {
	ScanID string   `json:"scan_id"`
	APs    []scanAP `json:"aps"`
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	c := scan.NewCollector()
	n, err := scan.ReadPCAP(ctx, f, c)
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	log.Printf("%d beacons, %d distinct access points", n, c.Len())

	if err := writeFrames(os.Stdout, c, *limit); err != nil {
		log.Fatal(err)
	}

	if *postURL != "" {
		req := buildScanRequest(uuid.NewString(), c, *limit)
		status, err := postScan(ctx, httputil.NewStandardClient(nil), *postURL, req)
		if err != nil {
			log.Fatalf("failed to post scan: %v", err)
		}
		log.Printf("posted scan %s: %s", req.ScanID, status)
	}
}

// writeFrames prints every batch as "RX,<hex>,0,0".
func writeFrames(w io.Writer, c *scan.Collector, n int) error {
	if n > 0 {
		keep := scan.NewCollector()
		for _, b := range strongest(c, n) {
			keep.Add(b)
		}
		c = keep
	}
	for _, p := range c.Batches() {
		b := p.Bytes()
		frame := radio.Frame{Payload: b[:]}
		if _, err := fmt.Fprintln(w, frame.String()); err != nil {
			return err
		}
	}
	return nil
}

func strongest(c *scan.Collector, n int) []scan.Beacon {
	all := c.Strongest()
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

func buildScanRequest(id string, c *scan.Collector, n int) scanRequest {
	req := scanRequest{ScanID: id, APs: []scanAP{}}
	for _, b := range strongest(c, n) {
		req.APs = append(req.APs, scanAP{
			BSSID:   b.AP.BSSID.String(),
			RSSI:    int(b.AP.RSSI),
			Channel: int(b.AP.Channel),
		})
	}
	return req
}

func postScan(ctx context.Context, hc httputil.HTTPClient, baseURL string, req scanRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/scan", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(r)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, out.Error)
	}
	return out.Status, nil
}
