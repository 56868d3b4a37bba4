package storefront

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// operation is a named GraphQL document sent to the storefront API.
type operation struct {
	name  string
	query string
}

const moneyFragment = `
fragment MoneyFields on MoneyV2 {
  amount
  currencyCode
}`

const imageFragment = `
fragment ImageFields on Image {
  url
  altText
}`

const cartFragment = `
fragment CartFields on Cart {
  id
  checkoutUrl
  totalQuantity
  cost {
    subtotalAmount { ...MoneyFields }
    totalAmount { ...MoneyFields }
  }
  discountAllocations {
    discountedAmount { ...MoneyFields }
  }
  discountCodes {
    code
    applicable
  }
  lines(first: 100) {
    nodes {
      id
      quantity
      cost {
        totalAmount { ...MoneyFields }
      }
      merchandise {
        ... on ProductVariant {
          id
          title
          price { ...MoneyFields }
          product {
            title
            handle
            featuredImage { ...ImageFields }
          }
        }
      }
    }
  }
}`

const productFragment = `
fragment ProductFields on Product {
  id
  title
  handle
  description
  featuredImage { ...ImageFields }
  priceRange {
    minVariantPrice { ...MoneyFields }
    maxVariantPrice { ...MoneyFields }
  }
  variants(first: 25) {
    nodes {
      id
      title
      availableForSale
      price { ...MoneyFields }
    }
  }
}`

const userErrorsSelection = `
    userErrors {
      field
      message
    }`

func cartMutation(name, signature, call string) *operation {
	return &operation{
		name: name,
		query: "mutation " + name + signature + " {\n  " + call + " {\n    cart { ...CartFields }" +
			userErrorsSelection + "\n  }\n}" + cartFragment + moneyFragment + imageFragment,
	}
}

var (
	opCartCreate = cartMutation("CartCreate", "", "cartCreate")

	opCartLinesAdd = cartMutation("CartLinesAdd",
		"($cartId: ID!, $lines: [CartLineInput!]!)",
		"cartLinesAdd(cartId: $cartId, lines: $lines)")

	opCartLinesUpdate = cartMutation("CartLinesUpdate",
		"($cartId: ID!, $lines: [CartLineUpdateInput!]!)",
		"cartLinesUpdate(cartId: $cartId, lines: $lines)")

	opCartLinesRemove = cartMutation("CartLinesRemove",
		"($cartId: ID!, $lineIds: [ID!]!)",
		"cartLinesRemove(cartId: $cartId, lineIds: $lineIds)")

	opCartDiscountCodesUpdate = cartMutation("CartDiscountCodesUpdate",
		"($cartId: ID!, $discountCodes: [String!])",
		"cartDiscountCodesUpdate(cartId: $cartId, discountCodes: $discountCodes)")

	opGetCart = &operation{
		name: "GetCart",
		query: `query GetCart($id: ID!) {
  cart(id: $id) { ...CartFields }
}` + cartFragment + moneyFragment + imageFragment,
	}

	opProducts = &operation{
		name: "Products",
		query: `query Products($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes { ...ProductFields }
  }
}` + productFragment + moneyFragment + imageFragment,
	}

	opProductByHandle = &operation{
		name: "ProductByHandle",
		query: `query ProductByHandle($handle: String!) {
  product(handle: $handle) { ...ProductFields }
}` + productFragment + moneyFragment + imageFragment,
	}

	opCollections = &operation{
		name: "Collections",
		query: `query Collections($first: Int!, $after: String) {
  collections(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      handle
      description
      image { ...ImageFields }
    }
  }
}` + imageFragment,
	}

	opCollectionByHandle = &operation{
		name: "CollectionByHandle",
		query: `query CollectionByHandle($handle: String!, $first: Int!, $after: String) {
  collection(handle: $handle) {
    id
    title
    handle
    description
    image { ...ImageFields }
    products(first: $first, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes { ...ProductFields }
    }
  }
}` + productFragment + moneyFragment + imageFragment,
	}

	opShop = &operation{
		name:  "Shop",
		query: `query Shop { shop { name } }`,
	}
)

var operations = []*operation{
	opCartCreate,
	opCartLinesAdd,
	opCartLinesUpdate,
	opCartLinesRemove,
	opCartDiscountCodesUpdate,
	opGetCart,
	opProducts,
	opProductByHandle,
	opCollections,
	opCollectionByHandle,
	opShop,
}

// validateDocuments parses every operation and checks that it defines
// exactly one operation of the expected name and every fragment it spreads.
func validateDocuments() error {
	for _, op := range operations {
		doc, err := parser.ParseQuery(&ast.Source{Name: op.name, Input: op.query})
		if err != nil {
			return errors.Wrapf(err, "parse %s", op.name)
		}
		if len(doc.Operations) != 1 || doc.Operations.ForName(op.name) == nil {
			return errors.Errorf("%s: document must define exactly operation %q", op.name, op.name)
		}
		for _, spread := range fragmentSpreads(op.query) {
			if doc.Fragments.ForName(spread) == nil {
				return errors.Errorf("%s: fragment %q is not defined", op.name, spread)
			}
		}
	}
	return nil
}

// fragmentSpreads returns the names following "..." that are not inline
// fragments.
func fragmentSpreads(query string) []string {
	var names []string
	for _, part := range strings.Split(query, "...")[1:] {
		part = strings.TrimLeft(part, " ")
		if strings.HasPrefix(part, "on ") {
			continue
		}
		end := strings.IndexFunc(part, func(r rune) bool {
			return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
		})
		if end < 0 {
			end = len(part)
		}
		names = append(names, part[:end])
	}
	return names
}
