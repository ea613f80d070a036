// Package models defines the core domain entities: assets, price series, and alerts.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// AssetType distinguishes exchange-traded stocks from round-the-clock crypto pairs.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// ParseAssetType maps a configured type string onto an AssetType.
// An empty string defaults to stock.
func ParseAssetType(s string) (AssetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stock":
		return AssetStock, nil
	case "crypto":
		return AssetCrypto, nil
	default:
		return "", fmt.Errorf("unknown asset type %q", s)
	}
}

// Asset is a configured instrument to monitor. Symbol is the provider ticker
// and the unique identifier across the configured set.
type Asset struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Name   string    `json:"name" yaml:"name"`
	Type   AssetType `json:"type" yaml:"type"`
}

// DisplayName returns the configured name, falling back to the symbol.
func (a Asset) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Symbol
}

// Validate checks asset field constraints.
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("asset symbol must not be empty")
	}
	if strings.ContainsAny(a.Symbol, " \t\r\n") {
		return errors.New("asset symbol must not contain whitespace")
	}
	if a.Type != AssetStock && a.Type != AssetCrypto {
		return fmt.Errorf("asset type must be %q or %q", AssetStock, AssetCrypto)
	}
	return nil
}
