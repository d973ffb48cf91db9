// Command seed-menu loads a menu document, menu pictures and offers into a
// running bot through the admin API.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_URL=http://localhost:8080 go run ./scripts/seed-menu menu.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
)

// SeedFile is the on-disk format: the admin menu document plus offers.
type SeedFile struct {
	Options *catalog.Options    `json:"options,omitempty"`
	Images  []catalog.MenuImage `json:"images,omitempty"`
	Offers  []catalog.Offer     `json:"offers,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-menu <menu.json>")
		os.Exit(1)
	}
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("ADMIN_JWT_SECRET is required")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}
	if seed.Options != nil {
		if err := seed.Options.Validate(); err != nil {
			fmt.Printf("Menu is invalid: %v\n", err)
			os.Exit(1)
		}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "seed-menu",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}).SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}
	call := func(method, path string, body any) error {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, method, apiURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, b)
		}
		return nil
	}

	if seed.Options != nil || seed.Images != nil {
		menu := map[string]any{}
		if seed.Options != nil {
			menu["options"] = seed.Options
		}
		if seed.Images != nil {
			menu["images"] = seed.Images
		}
		if err := call(http.MethodPut, "/admin/menu", menu); err != nil {
			fmt.Printf("Menu upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Menu uploaded (%d pictures)\n", len(seed.Images))
	}

	failed := 0
	for _, offer := range seed.Offers {
		// offers are always created; the server assigns ids
		offer.ID = ""
		if err := call(http.MethodPost, "/admin/offers", offer); err != nil {
			fmt.Printf("  offer %q: %v\n", offer.Title, err)
			failed++
			continue
		}
		fmt.Printf("  offer %q saved\n", offer.Title)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
