//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Services of docker-compose.test.yml. Both run the in-memory commerce
// backend; api keeps cart ids in PostgreSQL, api-redis in Redis.
var services = []string{"api", "api-redis"}

var baseURLs = map[string]string{}

// Response types are defined locally so the tests never import internal packages.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type moneyResponse struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type variantResponse struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	AvailableForSale bool          `json:"availableForSale"`
	Price            moneyResponse `json:"price"`
}

type productResponse struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Handle   string            `json:"handle"`
	Variants []variantResponse `json:"variants"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

type collectionResponse struct {
	Handle   string            `json:"handle"`
	Title    string            `json:"title"`
	Products []productResponse `json:"products"`
}

type lineResponse struct {
	ID          string        `json:"id"`
	Quantity    int           `json:"quantity"`
	Cost        moneyResponse `json:"cost"`
	Merchandise struct {
		ID string `json:"id"`
	} `json:"merchandise"`
}

type cartResponse struct {
	ID            string `json:"id"`
	CheckoutURL   string `json:"checkoutUrl"`
	TotalQuantity int    `json:"totalQuantity"`
	Cost          struct {
		SubtotalAmount moneyResponse `json:"subtotalAmount"`
		DiscountAmount moneyResponse `json:"discountAmount"`
		TotalAmount    moneyResponse `json:"totalAmount"`
	} `json:"cost"`
	DiscountCodes []struct {
		Code       string `json:"code"`
		Applicable bool   `json:"applicable"`
	} `json:"discountCodes"`
	Lines []lineResponse `json:"lines"`
}

type stateResponse struct {
	Cart       *cartResponse `json:"cart"`
	IsLoading  bool          `json:"isLoading"`
	IsCartOpen bool          `json:"isCartOpen"`
	ItemCount  int           `json:"itemCount"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Create coverage output directory for the instrumented binary.
	if err := os.MkdirAll("coverdir", 0o777); err != nil {
		log.Fatalf("create coverdir: %v", err)
	}

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	// Start postgres, redis and both API services; wait until they are ready.
	var stack tc.ComposeStack = dc
	for _, svc := range services {
		stack = stack.WaitForService(svc, wait.ForHTTP("/readyz").WithPort("8080/tcp"))
	}
	if err := stack.Up(ctx, tc.Wait(true)); err != nil {
		log.Fatalf("compose up: %v", err)
	}

	for _, svc := range services {
		container, err := dc.ServiceContainer(ctx, svc)
		if err != nil {
			log.Fatalf("%s container: %v", svc, err)
		}
		host, err := container.Host(ctx)
		if err != nil {
			log.Fatalf("%s host: %v", svc, err)
		}
		mappedPort, err := container.MappedPort(ctx, "8080/tcp")
		if err != nil {
			log.Fatalf("%s mapped port: %v", svc, err)
		}
		baseURLs[svc] = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
		log.Printf("%s available at %s", svc, baseURLs[svc])
	}

	result := m.Run()

	// Stop the API containers gracefully so the coverage-instrumented binary
	// flushes coverage data to GOCOVERDIR (bind-mounted to ./coverdir).
	// The compose file sets stop_signal: SIGINT because app.Run handles
	// SIGINT (not SIGTERM) for graceful shutdown.
	stopTimeout := 30 * time.Second
	for _, svc := range services {
		container, err := dc.ServiceContainer(context.Background(), svc)
		if err != nil {
			continue
		}
		if err := container.Stop(context.Background(), &stopTimeout); err != nil {
			log.Printf("stop %s container: %v", svc, err)
		}
	}

	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}

	return result
}

// shopper is one browser: a cookie jar against one service.
type shopper struct {
	t       *testing.T
	baseURL string
	client  *http.Client
}

func newShopper(t *testing.T, svc string) *shopper {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &shopper{
		t:       t,
		baseURL: baseURLs[svc],
		client:  &http.Client{Timeout: 10 * time.Second, Jar: jar},
	}
}

func (s *shopper) do(method, path string, body any, header http.Header) *http.Response {
	s.t.Helper()

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.baseURL+path, payload)
	if err != nil {
		s.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (s *shopper) get(path string) *http.Response {
	s.t.Helper()
	return s.do(http.MethodGet, path, nil, nil)
}

// state performs a cart call that must succeed and returns the cart state.
func (s *shopper) state(method, path string, body any) stateResponse {
	s.t.Helper()

	resp := s.do(method, path, body, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := decodeJSON[errorResponse](s.t, resp)
		s.t.Fatalf("%s %s: expected 200, got %d (%s)", method, path, resp.StatusCode, e.Message)
	}
	return decodeJSON[stateResponse](s.t, resp)
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}

// forEachService runs fn against every API service.
func forEachService(t *testing.T, fn func(t *testing.T, svc string)) {
	for _, svc := range services {
		t.Run(svc, func(t *testing.T) {
			fn(t, svc)
		})
	}
}
