package core

import (
	"sort"
	"strings"
)

type StaticCatalog struct {
	products map[string]Product
}

func NewStaticCatalog(products ...Product) *StaticCatalog {
	catalog := &StaticCatalog{products: map[string]Product{}}
	for _, product := range products {
		sku := strings.TrimSpace(product.SKU)
		if sku == "" {
			continue
		}
		product.SKU = sku
		catalog.products[sku] = product
	}
	return catalog
}

// DefaultCatalog lists the Mobile Legends products sold by the storefront.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(
		Product{SKU: "ML86", Name: "86 Diamonds", Category: "diamonds", Price: 20100},
		Product{SKU: "ML172", Name: "172 Diamonds", Category: "diamonds", Price: 40200},
		Product{SKU: "MLWDP", Name: "Weekly Diamond Pass", Category: "pass", Price: 28500},
		Product{SKU: "ML257", Name: "257 Diamonds", Category: "diamonds", Price: 60300},
		Product{SKU: "ML706", Name: "706 Diamonds", Category: "diamonds", Price: 160000},
	)
}

func (c *StaticCatalog) Lookup(sku string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	product, ok := c.products[strings.TrimSpace(sku)]
	return product, ok
}

// Products returns the catalog ordered by price.
func (c *StaticCatalog) Products() []Product {
	if c == nil {
		return []Product{}
	}
	out := make([]Product, 0, len(c.products))
	for _, product := range c.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].SKU < out[j].SKU
		}
		return out[i].Price < out[j].Price
	})
	return out
}
