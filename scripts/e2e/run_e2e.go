// Package main drives a running bot end to end through its public surfaces:
// signed gateway webhooks in, admin API out.
//
// Scenarios:
//   - Text order from greeting to submission, then staff confirmation
//   - Staff cancelling an open order
//   - Customer service hand-off opened from the menu and closed by staff
//
// Usage:
//
//	ADMIN_JWT_SECRET=... GATEWAY_WEBHOOK_SECRET=... API_BASE_URL=... go run ./scripts/e2e [scenario-name]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging/gateway"
)

const (
	identityBase = "9665000000"
	maxWait      = 20 * time.Second
	pollInterval = 500 * time.Millisecond
)

var (
	apiBase       string
	webhookSecret string
	adminToken    string
	httpClient    = &http.Client{Timeout: 10 * time.Second}
	seq           int
	// each scenario talks from its own number so earlier state never leaks in
	testIdentity string
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Name   string `json:"name"`
}

type session struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
}

func post(payload map[string]any) error {
	seq++
	payload["id"] = fmt.Sprintf("e2e-%d-%d", time.Now().UnixNano(), seq)
	payload["from"] = testIdentity + "@c.us"
	payload["timestamp"] = time.Now().Unix()
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, apiBase+"/webhooks/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if webhookSecret != "" {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set("X-Gateway-Timestamp", ts)
		req.Header.Set("X-Gateway-Signature", gateway.Sign(webhookSecret, ts, body))
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, b)
	}
	// the worker handles events asynchronously; keep them ordered
	time.Sleep(300 * time.Millisecond)
	return nil
}

func say(texts ...string) error {
	for _, text := range texts {
		if err := post(map[string]any{"type": "text", "text": text}); err != nil {
			return err
		}
	}
	return nil
}

func sendImage(url string) error {
	return post(map[string]any{"type": "image", "image": map[string]string{"url": url}})
}

func admin(method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func liveOrders() ([]order, error) {
	var resp struct {
		Orders []order `json:"orders"`
	}
	_, err := admin(http.MethodGet, "/admin/orders?identity="+testIdentity, nil, &resp)
	return resp.Orders, err
}

// waitForOrder polls until an order for the test identity reaches status.
func waitForOrder(status string) (order, error) {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		list, err := liveOrders()
		if err == nil {
			for i := len(list) - 1; i >= 0; i-- {
				if list[i].Status == status {
					return list[i], nil
				}
			}
		}
		time.Sleep(pollInterval)
	}
	return order{}, fmt.Errorf("timed out waiting for an order in status %q", status)
}

func placeOrder(t *T) (order, bool) {
	if err := say("hi", "1", "2 flat white", "تم", "E2E"); err != nil {
		t.fatalf("send: %v", err)
		return order{}, false
	}
	if err := sendImage("https://example.com/e2e-receipt.jpg"); err != nil {
		t.fatalf("send image: %v", err)
		return order{}, false
	}
	if err := say("1"); err != nil {
		t.fatalf("confirm: %v", err)
		return order{}, false
	}
	o, err := waitForOrder("pending")
	if err != nil {
		t.fatalf("%v", err)
		return order{}, false
	}
	return o, true
}

func scenarioTextOrder(t *T) {
	o, ok := placeOrder(t)
	if !ok {
		return
	}
	t.check("order stored with customer name", o.Name == "E2E")

	var updated order
	code, err := admin(http.MethodPatch, "/admin/orders/"+o.ID+"/status", map[string]string{"status": "confirmed"}, &updated)
	t.check("staff can confirm the order", err == nil && code == http.StatusOK && updated.Status == "confirmed")
}

func scenarioCancel(t *T) {
	o, ok := placeOrder(t)
	if !ok {
		return
	}
	var cancelled order
	code, err := admin(http.MethodPost, "/admin/orders/"+o.ID+"/cancel", nil, &cancelled)
	t.check("staff cancel succeeds", err == nil && code == http.StatusOK && cancelled.Status == "cancelled")

	code, _ = admin(http.MethodPost, "/admin/orders/"+o.ID+"/cancel", nil, nil)
	t.check("second cancel conflicts", code == http.StatusConflict)
}

func scenarioSupport(t *T) {
	if err := say("hi", "5"); err != nil {
		t.fatalf("send: %v", err)
		return
	}

	var found session
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) && found.ID == "" {
		var resp struct {
			Sessions []session `json:"sessions"`
		}
		if _, err := admin(http.MethodGet, "/admin/sessions?identity="+testIdentity, nil, &resp); err == nil && len(resp.Sessions) > 0 {
			found = resp.Sessions[0]
		}
		time.Sleep(pollInterval)
	}
	t.check("support session opened", found.ID != "")
	if found.ID == "" {
		return
	}
	t.check("session code is four digits", len(found.ID) == 4)

	code, _ := admin(http.MethodDelete, "/admin/sessions/"+found.ID, nil, nil)
	t.check("staff can close the session", code == http.StatusOK)
	code, _ = admin(http.MethodDelete, "/admin/sessions/"+found.ID, nil, nil)
	t.check("closed session is gone", code == http.StatusNotFound)
}

func signAdminToken(secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "e2e",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	webhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("ADMIN_JWT_SECRET is required")
		os.Exit(2)
	}
	token, err := signAdminToken(secret)
	if err != nil {
		fmt.Printf("sign admin token: %v\n", err)
		os.Exit(2)
	}
	adminToken = token

	scenarios := []scenario{
		{Name: "text-order", Fn: scenarioTextOrder},
		{Name: "cancel", Fn: scenarioCancel},
		{Name: "support", Fn: scenarioSupport},
	}

	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	total := &T{}
	for i, sc := range scenarios {
		if only != "" && sc.Name != only {
			continue
		}
		testIdentity = fmt.Sprintf("%s%02d", identityBase, 90+i)
		fmt.Printf("==> %s\n", sc.Name)
		t := &T{}
		sc.Fn(t)
		total.passed += t.passed
		total.failed += t.failed
	}

	fmt.Printf("\n%d passed, %d failed\n", total.passed, total.failed)
	if total.failed > 0 {
		os.Exit(1)
	}
}
