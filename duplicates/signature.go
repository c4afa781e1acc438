package duplicates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DisplayLabel is the human readable text of an item (catalog description
// text or manual text), resolved once when the row is loaded.
type DisplayLabel string

func (l DisplayLabel) String() string { return string(l) }

// ItemRow is the part of a requisition line item the duplicate check reads.
type ItemRow struct {
	ProductID         *int
	DescriptionID     *int
	ManualDescription string
	Label             DisplayLabel
	EstimatedTotal    decimal.Decimal
}

type SignatureKind int

const (
	SignatureUnknown SignatureKind = iota
	// product + catalog description
	SignatureCatalog
	// product + normalized manual description
	SignatureManual
	// product only
	SignatureProduct
	// normalized descriptive text, no product
	SignatureText
)

func (k SignatureKind) String() string {
	switch k {
	case SignatureCatalog:
		return "catalog"
	case SignatureManual:
		return "manual"
	case SignatureProduct:
		return "product"
	case SignatureText:
		return "text"
	case SignatureUnknown:
		return "unknown"
	}
	return fmt.Sprintf("SignatureKind(%d)", int(k))
}

// Signature identifies an item by content. Two rows with the same product and
// description path produce equal signatures.
type Signature struct {
	Kind          SignatureKind
	ProductID     int
	DescriptionID int
	Text          string
}

const unknownSignatureKey = "unknown"

// Key is the stable string form used for set comparison and for output.
func (s Signature) Key() string {
	switch s.Kind {
	case SignatureCatalog:
		return fmt.Sprintf("p:%d|d:%d", s.ProductID, s.DescriptionID)
	case SignatureManual:
		return fmt.Sprintf("p:%d|m:%s", s.ProductID, s.Text)
	case SignatureProduct:
		return fmt.Sprintf("p:%d", s.ProductID)
	case SignatureText:
		return "t:" + s.Text
	case SignatureUnknown:
		return unknownSignatureKey
	}
	return unknownSignatureKey
}

// Comparable reports whether the signature may take part in an intersection.
// Rows without any distinguishing content never match each other.
func (s Signature) Comparable() bool {
	return s.Kind != SignatureUnknown
}

func (s Signature) String() string { return s.Key() }

// BuildSignature resolves the identity of an item row.
func BuildSignature(item ItemRow) Signature {
	if item.ProductID != nil {
		product := *item.ProductID
		if item.DescriptionID != nil {
			return Signature{Kind: SignatureCatalog, ProductID: product, DescriptionID: *item.DescriptionID}
		}
		if manual := Normalize(item.ManualDescription); manual != "" {
			return Signature{Kind: SignatureManual, ProductID: product, Text: manual}
		}
		return Signature{Kind: SignatureProduct, ProductID: product}
	}

	text := Normalize(item.ManualDescription)
	if text == "" {
		text = Normalize(item.Label.String())
	}
	if text != "" {
		return Signature{Kind: SignatureText, Text: text}
	}
	return Signature{Kind: SignatureUnknown}
}

// SignatureSet is an insertion-ordered set of signature keys.
type SignatureSet struct {
	keys  map[string]Signature
	order []string
}

func NewSignatureSet(items []ItemRow) SignatureSet {
	set := SignatureSet{keys: make(map[string]Signature, len(items))}
	for _, item := range items {
		set.Add(BuildSignature(item))
	}
	return set
}

func (s *SignatureSet) Add(sig Signature) {
	if s.keys == nil {
		s.keys = make(map[string]Signature)
	}
	key := sig.Key()
	if _, ok := s.keys[key]; ok {
		return
	}
	s.keys[key] = sig
	s.order = append(s.order, key)
}

func (s SignatureSet) Len() int { return len(s.order) }

func (s SignatureSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Keys returns the keys in insertion order.
func (s SignatureSet) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Intersect returns the comparable keys of s that are also in other, in the
// insertion order of s. The unknown signature is never part of the result.
func (s SignatureSet) Intersect(other SignatureSet) []string {
	var out []string
	for _, key := range s.order {
		if !s.keys[key].Comparable() {
			continue
		}
		if other.Contains(key) {
			out = append(out, key)
		}
	}
	return out
}
