// Command signal-gen feeds a locally running decision engine with synthetic
// signals for development: a burst of correlated alerts and logs around a
// deployment, repeated on an interval.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type signal struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Service   string         `json:"service"`
	Timestamp string         `json:"timestamp"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}

var scenarios = [][]signal{
	{
		{Source: "argocd", Type: "deployment", Service: "payment-service", Severity: "medium", Message: "deploy v2.4.1"},
		{Source: "prometheus", Type: "alert", Service: "payment-service", Severity: "critical", Message: "HighErrorRate"},
		{Source: "loki", Type: "log", Service: "payment-service", Severity: "high", Message: "panic: nil pointer dereference"},
	},
	{
		{Source: "prometheus", Type: "metric", Service: "checkout-service", Severity: "high", Message: "p99 latency above 2s"},
		{Source: "prometheus", Type: "alert", Service: "checkout-service", Severity: "high", Message: "HighLatency"},
	},
	{
		{Source: "kubernetes", Type: "alert", Service: "search-service", Severity: "critical", Message: "OOMKilled"},
		{Source: "loki", Type: "log", Service: "search-service", Severity: "high", Message: "out of memory"},
	},
	{
		{Source: "falco", Type: "security_event", Service: "api-gateway", Severity: "high", Message: "unexpected shell in container"},
	},
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "decision engine base URL")
		interval = flag.Duration("interval", 30*time.Second, "delay between scenario bursts")
		once     = flag.Bool("once", false, "send a single burst and exit")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	for i := 0; ; i++ {
		burst := scenarios[i%len(scenarios)]
		now := time.Now().UTC()
		for j, s := range burst {
			s.ID = fmt.Sprintf("gen_%d_%d_%d", now.Unix(), i, j)
			s.Timestamp = now.Add(time.Duration(j) * time.Second).Format(time.RFC3339)
			s.Data = map[string]any{"synthetic": true, "burst": i}
			if err := post(client, *baseURL+"/api/v1/signals", s); err != nil {
				log.Printf("send signal: %v", err)
			}
		}
		if err := post(client, *baseURL+"/api/v1/decisions/process", map[string]any{}); err != nil {
			log.Printf("trigger decide: %v", err)
		}
		log.Printf("burst %d sent (%d signals, service %s)", i, len(burst), burst[0].Service)
		if *once {
			return
		}
		time.Sleep(*interval + time.Duration(rand.Intn(5))*time.Second)
	}
}

func post(client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return nil
}
