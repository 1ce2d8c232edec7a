package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/pkg/config"
	xhttp "MarketGate/pkg/http"
)

type providersResponse struct {
	Status int                              `json:"status"`
	Data   map[string]models.ProviderHealth `json:"data"`
}

// Prints per-provider breaker state from a running gateway. Exits 1 when the
// gateway is unreachable or every breaker is open.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	host := flag.String("host", "localhost", "gateway host")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := xhttp.NewClient(xhttp.WithTimeout(*timeout))
	var resp providersResponse
	err = client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("http://%s:%d/api/v1/health/providers", *host, cfg.Server.Port),
	}, &resp)
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}

	out, _ := json.MarshalIndent(resp.Data, "", "  ")
	fmt.Println(string(out))

	now := time.Now()
	for _, ph := range resp.Data {
		if ph.Available(now) {
			return
		}
	}
	log.Printf("all provider breakers open")
	os.Exit(1)
}
