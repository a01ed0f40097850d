// Package units converts recipe and stock quantities between units of
// mass, volume and count.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Precision is the number of decimal places every converted quantity is
// rounded to before it is summed.
const Precision = 6

// Unit is a unit of measure label as stored on inventory items and recipes.
type Unit string

const (
	Gram       Unit = "g"
	Kilogram   Unit = "kg"
	Milliliter Unit = "ml"
	Liter      Unit = "l"
	Piece      Unit = "pc"
)

// Family groups units that convert into each other by a fixed factor.
type Family string

const (
	FamilyMass    Family = "mass"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
	FamilyUnknown Family = "unknown"
)

type unitInfo struct {
	family Family
	// factor to the family base unit (g, ml, pc)
	factor float64
}

var catalog = map[Unit]unitInfo{
	Gram:       {FamilyMass, 1},
	Kilogram:   {FamilyMass, 1000},
	Milliliter: {FamilyVolume, 1},
	Liter:      {FamilyVolume, 1000},
	Piece:      {FamilyCount, 1},
}

// aliases maps the labels found in legacy data onto canonical units.
var aliases = map[string]Unit{
	"g":          Gram,
	"gr":         Gram,
	"gram":       Gram,
	"grams":      Gram,
	"kg":         Kilogram,
	"kilo":       Kilogram,
	"kilogram":   Kilogram,
	"kilograms":  Kilogram,
	"ml":         Milliliter,
	"milliliter": Milliliter,
	"l":          Liter,
	"lt":         Liter,
	"liter":      Liter,
	"liters":     Liter,
	"pc":         Piece,
	"pcs":        Piece,
	"piece":      Piece,
	"pieces":     Piece,
	"unit":       Piece,
	"units":      Piece,
	"case":       Piece,
	"box":        Piece,
}

// Quantity is an amount paired with its unit.
type Quantity struct {
	Value float64 `json:"quantity"`
	Unit  Unit    `json:"unit"`
}

func (q Quantity) String() string {
	return fmt.Sprintf("%g %s", q.Value, q.Unit)
}

// Parse normalizes a unit label. Unknown labels are returned lower-cased and
// report FamilyUnknown.
func Parse(label string) Unit {
	key := strings.ToLower(strings.TrimSpace(label))
	if u, ok := aliases[key]; ok {
		return u
	}
	return Unit(key)
}

// Canonical returns the normalized form of u.
func (u Unit) Canonical() Unit {
	return Parse(string(u))
}

// Family returns the conversion family of u.
func (u Unit) Family() Family {
	if info, ok := catalog[u.Canonical()]; ok {
		return info.family
	}
	return FamilyUnknown
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u.Family() != FamilyUnknown
}

// Round rounds v to Precision decimal places.
func Round(v float64) float64 {
	p := math.Pow10(Precision)
	return math.Round(v*p) / p
}

// IncompatibleError is returned when two units belong to different families
// and no piece content bridges them.
type IncompatibleError struct {
	From Unit
	To   Unit
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("cannot convert %s (%s) to %s (%s)", e.From, e.From.Family(), e.To, e.To.Family())
}

// Convert converts value from one unit to another within the same family.
func Convert(value float64, from, to Unit) (float64, error) {
	src, ok := catalog[from.Canonical()]
	if !ok {
		return 0, &IncompatibleError{From: from, To: to}
	}
	dst, ok := catalog[to.Canonical()]
	if !ok || src.family != dst.family {
		return 0, &IncompatibleError{From: from, To: to}
	}
	return Round(value * src.factor / dst.factor), nil
}

// ToStock converts a recipe contribution into the unit an inventory item is
// stocked in. When the item is stocked by piece and declares the content of
// one piece, mass and volume contributions are converted into the content
// unit and divided by the content per piece.
func ToStock(q Quantity, stock Unit, perPiece *Quantity) (float64, error) {
	if stock.Family() == FamilyCount && perPiece != nil && q.Unit.Family() != FamilyCount {
		if perPiece.Value <= 0 {
			return 0, fmt.Errorf("invalid content per piece %s", perPiece)
		}
		content, err := Convert(q.Value, q.Unit, perPiece.Unit)
		if err != nil {
			return 0, err
		}
		return Round(content / perPiece.Value), nil
	}
	return Convert(q.Value, q.Unit, stock)
}
