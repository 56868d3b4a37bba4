//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	s := newShopper(t, "api")

	resp := s.get("/api/products?first=4")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	page := decodeJSON[productListResponse](t, resp)
	if len(page.Products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(page.Products))
	}
	if !page.PageInfo.HasNextPage {
		t.Fatal("expected a next page")
	}

	resp = s.get("/api/products?first=4&after=" + page.PageInfo.EndCursor)
	defer resp.Body.Close()
	next := decodeJSON[productListResponse](t, resp)
	if len(next.Products) != 2 || next.PageInfo.HasNextPage {
		t.Fatalf("expected the last 2 products, got %d (hasNextPage=%v)", len(next.Products), next.PageInfo.HasNextPage)
	}
}

func TestGetProduct(t *testing.T) {
	s := newShopper(t, "api")

	resp := s.get("/api/products/aurele")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.Title != "Aurèle" {
		t.Errorf("title: got %q", p.Title)
	}
	if len(p.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(p.Variants))
	}
	if p.Variants[0].Price.Amount != "420.00" || p.Variants[0].Price.CurrencyCode != "EUR" {
		t.Errorf("price: got %+v", p.Variants[0].Price)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := newShopper(t, "api").get("/api/products/monocle")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("code: got %d", body.Code)
	}
}

func TestGetCollection(t *testing.T) {
	resp := newShopper(t, "api").get("/api/collections/sun")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	c := decodeJSON[collectionResponse](t, resp)
	if len(c.Products) != 3 {
		t.Fatalf("expected 3 sunglasses, got %d", len(c.Products))
	}
	if c.Products[0].Handle != "solene" {
		t.Errorf("first product: got %q", c.Products[0].Handle)
	}
}
