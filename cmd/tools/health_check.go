package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Small probe for the service's /health endpoint, usable from container
// health checks and deploy scripts.

var addr = flag.String("addr", "http://localhost:8080", "Service base URL")

func main() {
	flag.Parse()

	fmt.Println("pricewatch Health Check Utility")
	fmt.Println("-------------------------------")

	healthy, err := checkServiceHealth(*addr + "/health")
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	if healthy {
		fmt.Println("Service is healthy!")
	} else {
		fmt.Println("Service is NOT healthy!")
	}
}

func checkServiceHealth(url string) (bool, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	return body["status"] == "ok", nil
}
