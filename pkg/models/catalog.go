package models

// Product is a sellable item in the shop catalog.
type Product struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	Unit        string  `json:"unit" yaml:"unit"`
	Category    string  `json:"category" yaml:"category"`
	Taste       string  `json:"taste,omitempty" yaml:"taste"`
	Origin      string  `json:"origin,omitempty" yaml:"origin"`
	Description string  `json:"description,omitempty" yaml:"description"`
}

// PolicySection is one section of the shop's policy documents.
type PolicySection struct {
	ID      string   `json:"id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Content string   `json:"content" yaml:"content"`
	Tags    []string `json:"tags,omitempty" yaml:"tags"`
}

// PickupLocation is a place where customers collect orders.
type PickupLocation struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Hours   string `json:"hours,omitempty" yaml:"hours"`
}

// Catalog is the full knowledge base of the shop.
type Catalog struct {
	Products        []Product        `json:"products" yaml:"products"`
	Policies        []PolicySection  `json:"policies" yaml:"policies"`
	PickupLocations []PickupLocation `json:"pickup_locations" yaml:"pickup_locations"`
}
