package quote

import (
	"github.com/holiman/uint256"
)

// AssetID is the opaque 256-bit CTF token identifier Polymarket assigns to
// each outcome token. The CLOB API exchanges these as decimal strings; we
// keep them as uint256 internally so equality and map-keying are cheap and
// exact, matching the on-chain representation go-ethereum already uses
// elsewhere in this module for order signing.
type AssetID struct {
	v uint256.Int
}

// ZeroAssetID is the sentinel "no asset selected" value.
var ZeroAssetID = AssetID{}

// ParseAssetID parses a decimal token-id string as returned by the CLOB API.
func ParseAssetID(s string) (AssetID, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return AssetID{}, err
	}
	return AssetID{v: *v}, nil
}

// MustAssetID parses s and panics on error. For constants and test fixtures.
func MustAssetID(s string) AssetID {
	id, err := ParseAssetID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the asset id in the decimal form the CLOB API expects.
func (a AssetID) String() string { return a.v.Dec() }

// IsZero reports whether a is the sentinel zero value.
func (a AssetID) IsZero() bool { return a.v.IsZero() }

// Equal reports whether a and o identify the same token.
func (a AssetID) Equal(o AssetID) bool { return a.v.Eq(&o.v) }
