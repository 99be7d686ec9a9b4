package models

import "fmt"

// ProviderKind identifies the originating health-data platform. The set is
// closed: adding a vendor means adding a constant here plus its three
// transforms in the transform package.
type ProviderKind string

const (
	ProviderAppleHealth   ProviderKind = "APPLE_HEALTH"
	ProviderHealthConnect ProviderKind = "HEALTH_CONNECT"
)

// Valid reports whether p is one of the supported providers.
func (p ProviderKind) Valid() bool {
	switch p {
	case ProviderAppleHealth, ProviderHealthConnect:
		return true
	}
	return false
}

func (p ProviderKind) String() string { return string(p) }

// ErrUnsupportedProvider is returned when a payload names a provider outside
// the closed set.
var ErrUnsupportedProvider = fmt.Errorf("unsupported provider type")

// Category is one of the three canonical record shapes.
type Category string

const (
	CategoryDaily Category = "daily"
	CategoryBody  Category = "body"
	CategorySleep Category = "sleep"
)

// Categories lists all canonical categories in write order.
func Categories() []Category {
	return []Category{CategoryDaily, CategoryBody, CategorySleep}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryDaily, CategoryBody, CategorySleep:
		return true
	}
	return false
}
