// Package keys - Klassifizierung von LoRA Tensor-Keys
//
// Dieses Modul enthaelt:
// - Family: Geschlossene Menge der Architektur-Familien
// - ParsedKey: Ergebnis der Klassifizierung eines Keys
// - UnrecognizedKeyError: Fehler fuer Keys ohne passenden Recognizer
package keys

import (
	"errors"
	"fmt"
	"log/slog"
)

// Family ist die Architektur-Familie eines Keys
type Family int

const (
	FamilyUnrecognized Family = iota
	FamilyUNetSD
	FamilyUNetSDXL
	FamilyFluxDouble
	FamilyFluxSingle
	FamilyTextEncoder
	FamilyGemma
	FamilyLumina
	FamilyEmbedder

	numFamilies
)

// familyInfo beschreibt Name und Block-Konstante einer Familie
type familyInfo struct {
	name string

	// fixedBlockCount trennt Down- und Up-Pfad eines U-Nets
	fixedBlockCount int
}

var families = [...]familyInfo{
	FamilyUnrecognized: {name: "unrecognized"},
	FamilyUNetSD:       {name: "unet-sd", fixedBlockCount: 12},
	FamilyUNetSDXL:     {name: "unet-sdxl", fixedBlockCount: 26},
	FamilyFluxDouble:   {name: "unet-flux-double"},
	FamilyFluxSingle:   {name: "unet-flux-single"},
	FamilyTextEncoder:  {name: "text-encoder"},
	FamilyGemma:        {name: "text-encoder-gemma"},
	FamilyLumina:       {name: "transformer-lumina"},
	FamilyEmbedder:     {name: "embedder"},
}

// Jede Familie braucht einen Eintrag in families
var _ = [1]struct{}{}[len(families)-int(numFamilies)]

// Families gibt alle Familien in Anzeige-Reihenfolge zurueck
func Families() []Family {
	fs := make([]Family, 0, numFamilies)
	for f := range numFamilies {
		fs = append(fs, f)
	}
	return fs
}

func (f Family) String() string {
	if f < 0 || f >= numFamilies {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return families[f].name
}

// FixedBlockCount gibt die Block-Konstante der Familie zurueck, 0 wenn es keine gibt
func (f Family) FixedBlockCount() int {
	if f < 0 || f >= numFamilies {
		return 0
	}
	return families[f].fixedBlockCount
}

// IsUNet meldet ob die Familie zum Diffusions-Backbone gehoert
func (f Family) IsUNet() bool {
	switch f {
	case FamilyUNetSD, FamilyUNetSDXL, FamilyFluxDouble, FamilyFluxSingle, FamilyLumina:
		return true
	case FamilyTextEncoder, FamilyGemma, FamilyEmbedder, FamilyUnrecognized:
		return false
	}
	return false
}

// IsTextEncoder meldet ob die Familie ein Text-Encoder ist
func (f Family) IsTextEncoder() bool {
	return f == FamilyTextEncoder || f == FamilyGemma
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	p, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// ParseFamily parst den Namen einer Familie
func ParseFamily(s string) (Family, error) {
	for i, info := range families {
		if info.name == s {
			return Family(i), nil
		}
	}
	return FamilyUnrecognized, fmt.Errorf("unknown architecture family %q", s)
}

// Absent markiert fehlende Block- oder Sub-Block-IDs
const Absent = -1

// ParsedKey ist die kanonische Position eines Tensor-Keys
type ParsedKey struct {
	Family        Family `json:"architectureFamily"`
	BlockType     string `json:"blockType"`
	BlockID       int    `json:"blockId"`
	SubBlockID    int    `json:"subBlockId"`
	LinearIndex   int    `json:"linearIndex"`
	CanonicalName string `json:"canonicalName"`
	IsAttention   bool   `json:"isAttention"`
	IsConvolution bool   `json:"isConvolution"`
	IsSampler     bool   `json:"isSampler"`

	// SubType ist der erkannte Operations-Token (z.B. attn1, to_k, mlp_0)
	SubType string `json:"subType,omitempty"`

	// Modality ist txt oder img bei Flux Double-Blocks
	Modality string `json:"modality,omitempty"`

	// Encoder ist 1 oder 2 bei dualen Text-Encodern
	Encoder int `json:"encoder,omitempty"`

	SourceKey string `json:"sourceKey"`
}

// ChartIndex ordnet Bloecke ueber alle Stufen eines U-Nets hinweg:
// Down-Pfad, dann Mitte, dann Up-Pfad
func (p ParsedKey) ChartIndex() int {
	fixed := p.Family.FixedBlockCount()
	if fixed == 0 {
		return p.LinearIndex
	}

	idx := p.LinearIndex
	if idx < 0 && p.BlockID != Absent {
		idx = 3 * p.BlockID
	}

	switch p.BlockType {
	case "mid", "middle":
		return fixed
	case "up", "output":
		return fixed + 1 + idx
	default:
		return idx
	}
}

func (p ParsedKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("family", p.Family.String()),
		slog.String("canonical", p.CanonicalName),
		slog.Int("index", p.LinearIndex),
		slog.String("key", p.SourceKey),
	)
}

// ErrUnrecognizedKeyFormat wird zurueckgegeben wenn kein Recognizer passt
var ErrUnrecognizedKeyFormat = errors.New("unrecognized key format")

// UnrecognizedKeyError traegt den Key, der nicht klassifiziert werden konnte
type UnrecognizedKeyError struct {
	Key string

	// Recognizer ist der Guard, der den Key beansprucht hat, leer beim Fallback
	Recognizer string
}

func (e *UnrecognizedKeyError) Error() string {
	if e.Recognizer != "" {
		return fmt.Sprintf("%s: %q (claimed by %s)", ErrUnrecognizedKeyFormat, e.Key, e.Recognizer)
	}
	return fmt.Sprintf("%s: %q", ErrUnrecognizedKeyFormat, e.Key)
}

func (e *UnrecognizedKeyError) Unwrap() error {
	return ErrUnrecognizedKeyFormat
}
