package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type serviceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Services  struct {
		Database      serviceStatus `json:"database"`
		Notifications struct {
			Status      string `json:"status"`
			Subscribers int    `json:"subscribers"`
			Pending     int    `json:"pending"`
		} `json:"notifications"`
		Ingest struct {
			Status  string `json:"status"`
			Pending int    `json:"pending"`
		} `json:"ingest"`
	} `json:"services"`
}

func main() {
	url := "http://localhost:8080/health"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	fmt.Printf("Testing health endpoint: %s\n", url)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf("Error connecting to health endpoint: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Response status: %s\n", resp.Status)

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		fmt.Printf("Error parsing JSON response: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		fmt.Printf("Health check failed: status=%s\n", health.Status)
		if health.Services.Database.Error != "" {
			fmt.Printf("  database error: %s\n", health.Services.Database.Error)
		}
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	fmt.Printf("  database:    %s\n", health.Services.Database.Status)
	fmt.Printf("  subscribers: %d\n", health.Services.Notifications.Subscribers)
	fmt.Printf("  pending:     %d (notifications), %d (ingest queue)\n",
		health.Services.Notifications.Pending, health.Services.Ingest.Pending)
}
