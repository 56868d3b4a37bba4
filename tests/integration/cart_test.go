//go:build integration

package integration

import (
	"net/http"
	"net/url"
	"testing"
)

const (
	aureleTortoise = "gid://shopify/ProductVariant/2001"
	soleneHavana   = "gid://shopify/ProductVariant/2011"
)

// lineURL addresses a cart line through the lineId query parameter.
func lineURL(path, lineID string) string {
	return path + "?" + url.Values{"lineId": {lineID}}.Encode()
}

func TestCart_Flow(t *testing.T) {
	forEachService(t, func(t *testing.T, svc string) {
		s := newShopper(t, svc)

		st := s.state(http.MethodGet, "/api/cart", nil)
		if st.Cart == nil {
			t.Fatal("expected a cart to be created on first visit")
		}
		if st.ItemCount != 0 || st.IsCartOpen {
			t.Fatalf("fresh cart: got itemCount=%d isCartOpen=%v", st.ItemCount, st.IsCartOpen)
		}
		cartID := st.Cart.ID

		st = s.state(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": aureleTortoise, "quantity": 2})
		if !st.IsCartOpen {
			t.Error("adding an item should open the drawer")
		}
		st = s.state(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": soleneHavana})
		if st.Cart.ID != cartID {
			t.Fatalf("cart id changed: %q -> %q", cartID, st.Cart.ID)
		}
		if st.ItemCount != 3 || len(st.Cart.Lines) != 2 {
			t.Fatalf("expected 3 items on 2 lines, got %d on %d", st.ItemCount, len(st.Cart.Lines))
		}
		if st.Cart.Cost.SubtotalAmount.Amount != "1305.00" {
			t.Errorf("subtotal: got %s", st.Cart.Cost.SubtotalAmount.Amount)
		}

		var aurele lineResponse
		for _, l := range st.Cart.Lines {
			if l.Merchandise.ID == aureleTortoise {
				aurele = l
			}
		}

		st = s.state(http.MethodPost, lineURL("/api/cart/lines/decrement", aurele.ID), nil)
		if st.ItemCount != 2 {
			t.Errorf("after decrement: got %d items", st.ItemCount)
		}
		st = s.state(http.MethodPatch, lineURL("/api/cart/lines", aurele.ID), map[string]any{"quantity": 0})
		if st.ItemCount != 1 || len(st.Cart.Lines) != 1 {
			t.Errorf("quantity 0 should remove the line, got %d items on %d lines", st.ItemCount, len(st.Cart.Lines))
		}

		st = s.state(http.MethodPost, "/api/cart/discount-codes", map[string]any{"code": "WELCOME10"})
		if st.Cart.Cost.DiscountAmount.Amount != "46.50" || st.Cart.Cost.TotalAmount.Amount != "418.50" {
			t.Errorf("discount: got %s off, total %s", st.Cart.Cost.DiscountAmount.Amount, st.Cart.Cost.TotalAmount.Amount)
		}

		st = s.state(http.MethodPost, "/api/cart/close", nil)
		if st.IsCartOpen {
			t.Error("drawer should be closed")
		}
	})
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	forEachService(t, func(t *testing.T, svc string) {
		alice, bob := newShopper(t, svc), newShopper(t, svc)

		a := alice.state(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": aureleTortoise})
		b := bob.state(http.MethodGet, "/api/cart", nil)

		if b.Cart == nil || a.Cart.ID == b.Cart.ID {
			t.Fatal("each session must own its cart")
		}
		if b.ItemCount != 0 {
			t.Errorf("bob sees %d items", b.ItemCount)
		}
	})
}

func TestCart_FailedMutation(t *testing.T) {
	s := newShopper(t, "api")
	before := s.state(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": aureleTortoise})

	resp := s.do(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": "gid://shopify/ProductVariant/0"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "Something went wrong. Please try again later." {
		t.Errorf("message: got %q", body.Message)
	}

	after := s.state(http.MethodGet, "/api/cart", nil)
	if after.ItemCount != before.ItemCount {
		t.Errorf("failed add changed the cart: %d -> %d items", before.ItemCount, after.ItemCount)
	}
}

func TestCart_BadInput(t *testing.T) {
	s := newShopper(t, "api")

	resp := s.do(http.MethodPost, "/api/cart/lines", map[string]any{"variantId": aureleTortoise, "quantity": 0}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
