package memory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

const (
	seedCurrency = "EUR"
	seedImageCDN = "https://cdn.lumiere.example/products/"
)

// CollectionSeed lists the product handles of a collection.
type CollectionSeed struct {
	Handle      string
	Title       string
	Description string
	Products    []string
}

type frame struct {
	handle, title, description, price string
	colours                           []string
}

var seedFrames = []frame{
	{"aurele", "Aurèle", "Hand-polished acetate optical frame with keyhole bridge.", "420.00",
		[]string{"Tortoise", "Black Onyx", "Champagne Crystal"}},
	{"solene", "Solène", "Oversized square sunglasses with mineral glass lenses.", "465.00",
		[]string{"Havana / Green", "Black / Grey"}},
	{"marceau", "Marceau", "Featherweight titanium optical frame.", "540.00",
		[]string{"Gold", "Silver"}},
	{"isaure", "Isaure", "Cat-eye sunglasses, Italian acetate.", "480.00",
		[]string{"Ivory", "Noir"}},
	{"bastien", "Bastien", "Double-bridge aviator with gradient lenses.", "510.00",
		[]string{"Gold / Brown Gradient", "Gunmetal / Grey Gradient"}},
	{"clemence", "Clémence", "Round optical frame in rose-gold titanium.", "395.00",
		[]string{"Rose Gold"}},
}

// SeedProducts returns the built-in eyewear catalog.
func SeedProducts() []product.Product {
	products := make([]product.Product, 0, len(seedFrames))
	for i, f := range seedFrames {
		price := money.New(decimal.RequireFromString(f.price), seedCurrency)
		p := product.Product{
			ID:          fmt.Sprintf("gid://shopify/Product/%d", 1001+i),
			Title:       f.title,
			Handle:      f.handle,
			Description: f.description,
			Image: product.Image{
				URL:     seedImageCDN + f.handle + ".jpg",
				AltText: f.title + " frame",
			},
			PriceRange: product.PriceRange{Min: price, Max: price},
		}
		for j, colour := range f.colours {
			p.Variants = append(p.Variants, product.Variant{
				ID:               fmt.Sprintf("gid://shopify/ProductVariant/%d", 2001+i*10+j),
				Title:            colour,
				AvailableForSale: true,
				Price:            price,
			})
		}
		products = append(products, p)
	}
	return products
}

// SeedCollections returns the built-in collections over SeedProducts.
func SeedCollections() []CollectionSeed {
	return []CollectionSeed{
		{Handle: "sun", Title: "Sun", Description: "Sunglasses.", Products: []string{"solene", "isaure", "bastien"}},
		{Handle: "optical", Title: "Optical", Description: "Prescription-ready frames.", Products: []string{"aurele", "marceau", "clemence"}},
		{Handle: "new-arrivals", Title: "New Arrivals", Description: "This season's frames.", Products: []string{"isaure", "marceau"}},
	}
}

// SeedDiscounts returns the built-in discount codes.
func SeedDiscounts() []DiscountRule {
	return []DiscountRule{
		{Code: "WELCOME10", Type: DiscountPercentage, Value: decimal.NewFromInt(10)},
		{Code: "PAIR50", Type: DiscountFixed, Value: decimal.NewFromInt(50), MinItems: 2},
		{Code: "SECONDPAIR", Type: DiscountFreeLowest, MinItems: 2},
	}
}
