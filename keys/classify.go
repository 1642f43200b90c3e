// classify.go - Key Classifier
//
// Hauptfunktionen:
// - Classify: Ordnet einen Tensor-Key seiner kanonischen Position zu
// - MustClassify: Variante fuer Tests und statische Tabellen
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// Classify ordnet key einer Architektur-Familie und einem kanonischen Block zu.
// Literal-Guards werden vor den Regex-Patterns geprueft; der erste Recognizer,
// dessen Guard im Key vorkommt, besitzt den Key. Passt keiner seiner Patterns,
// schlaegt die Klassifizierung mit einem *UnrecognizedKeyError fehl.
func Classify(key string) (ParsedKey, error) {
	for _, r := range recognizers {
		guard, ok := r.claims(key)
		if !ok {
			continue
		}

		if r.literals != nil {
			return singleton(key, guard, r.literals[guard]), nil
		}

		for _, p := range r.patterns {
			m, err := p.re.FindStringMatch(key)
			if err != nil {
				return ParsedKey{}, fmt.Errorf("%s: %w", r.name, err)
			}
			if m == nil {
				continue
			}

			return extract(r.family, p, key, m)
		}

		name := r.name
		if len(r.guards) == 0 {
			name = ""
		}
		return ParsedKey{}, &UnrecognizedKeyError{Key: key, Recognizer: name}
	}

	return ParsedKey{}, &UnrecognizedKeyError{Key: key}
}

// MustClassify ist wie Classify, panikt aber bei einem Fehler
func MustClassify(key string) ParsedKey {
	p, err := Classify(key)
	if err != nil {
		panic(err)
	}
	return p
}

// claims gibt den ersten passenden Guard zurueck. Ein Recognizer ohne
// Guards beansprucht jeden Key.
func (r recognizer) claims(key string) (string, bool) {
	if len(r.guards) == 0 {
		return "", true
	}

	for _, g := range r.guards {
		if strings.Contains(key, g) {
			return g, true
		}
	}
	return "", false
}

func group(m *regexp2.Match, name string) string {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

func groupInt(m *regexp2.Match, name string) int {
	s := group(m, name)
	if s == "" {
		return Absent
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Absent
	}
	return n
}

func canonical(prefix string, n int) string {
	return fmt.Sprintf("%s%02d", prefix, n)
}

func singleton(key, token, name string) ParsedKey {
	return ParsedKey{
		Family:        FamilyEmbedder,
		BlockType:     strings.TrimPrefix(token, "unet_"),
		BlockID:       Absent,
		SubBlockID:    Absent,
		LinearIndex:   0,
		CanonicalName: name,
		SourceKey:     key,
	}
}

// extract baut den ParsedKey fuer die Familie des Recognizers
func extract(f Family, p pattern, key string, m *regexp2.Match) (ParsedKey, error) {
	pk := ParsedKey{
		Family:      f,
		BlockType:   group(m, "block_type"),
		BlockID:     groupInt(m, "block_id"),
		SubBlockID:  Absent,
		LinearIndex: Absent,
		SourceKey:   key,
	}

	switch f {
	case FamilyUNetSD:
		unet(&pk, m)
	case FamilyUNetSDXL:
		sdxl(&pk, p, m)
	case FamilyFluxDouble:
		pk.LinearIndex = pk.BlockID
		pk.CanonicalName = canonical("DB", pk.BlockID)
		if pk.BlockType == "transformer_blocks" {
			peft(&pk, m)
		} else {
			pk.Modality = group(m, "modality")
			pk.SubType = group(m, "subblock_type")
			pk.IsAttention = strings.HasPrefix(pk.SubType, "attn_")
		}
	case FamilyFluxSingle:
		pk.SubBlockID = 0
		pk.LinearIndex = pk.BlockID
		pk.CanonicalName = canonical("SB", pk.BlockID)
		if pk.BlockType == "single_transformer_blocks" {
			peft(&pk, m)
		} else {
			pk.SubType = group(m, "subblock_type")
			pk.IsAttention = pk.SubType == "linear1" || pk.SubType == "linear2"
		}
	case FamilyTextEncoder:
		pk.LinearIndex = pk.BlockID
		pk.CanonicalName = canonical("TE", pk.BlockID)
		pk.SubType = pk.BlockType
		pk.IsAttention = pk.BlockType == "self_attn"
		if enc := groupInt(m, "encoder"); enc != Absent {
			pk.Encoder = enc
		}
	case FamilyGemma:
		pk.LinearIndex = pk.BlockID
		pk.CanonicalName = canonical("TE", pk.BlockID)
		pk.SubType = group(m, "type")
		pk.IsAttention = strings.HasPrefix(pk.SubType, "self_attn_")
	case FamilyLumina:
		pk.LinearIndex = pk.BlockID
		pk.CanonicalName = canonical(strings.ToUpper(pk.BlockType[:1])+"B", pk.BlockID)
		pk.SubType = group(m, "type") + group(m, "subblock_type")
		pk.IsAttention = strings.HasPrefix(pk.SubType, "attention_")
	case FamilyEmbedder, FamilyUnrecognized:
		return ParsedKey{}, &UnrecognizedKeyError{Key: key, Recognizer: f.String()}
	default:
		return ParsedKey{}, fmt.Errorf("keys: unhandled family %v", f)
	}

	if pk.BlockID == Absent {
		return ParsedKey{}, &UnrecognizedKeyError{Key: key, Recognizer: f.String()}
	}

	return pk, nil
}

// unet berechnet Index und Namen fuer den SD1.x U-Net.
// Down- und Up-Pfad: 3*blockId + subBlockId, Sampler immer auf Slot 2.
func unet(pk *ParsedKey, m *regexp2.Match) {
	typ := group(m, "type")
	pk.SubType = typ
	pk.IsAttention = typ == "attentions"
	pk.IsConvolution = typ == "resnets"
	pk.IsSampler = typ == "upsamplers" || typ == "downsamplers"

	if pk.BlockType == "mid" {
		pk.CanonicalName = canonical("MID", pk.BlockID)
		return
	}

	pk.SubBlockID = groupInt(m, "subblock_id")
	idx := 3*pk.BlockID + pk.SubBlockID
	if pk.IsSampler {
		idx = 3*pk.BlockID + 2
	}
	pk.LinearIndex = idx

	if pk.BlockType == "up" {
		pk.CanonicalName = canonical("OUT", FamilyUNetSD.FixedBlockCount()+1+idx)
	} else {
		pk.CanonicalName = canonical("IN", idx)
	}
}

// sdxl rechnet die Triplet-Arithmetik nur fuer attn1, attn2 und ff.
// Alle anderen Sub-Typen behalten Index -1 und werden nach Block benannt.
func sdxl(pk *ParsedKey, p pattern, m *regexp2.Match) {
	pk.SubType = group(m, "subtype")

	prefix := map[string]string{"input": "IN", "output": "OUT", "middle": "MID"}[pk.BlockType]

	if !p.attention {
		pk.SubBlockID = groupInt(m, "module_id")
		pk.CanonicalName = canonical(prefix+"B", pk.BlockID)
		switch {
		case pk.SubType == "proj_in" || pk.SubType == "proj_out":
			pk.IsAttention = true
		case pk.SubType == "op" || pk.SubType == "conv":
			pk.IsSampler = true
		default:
			pk.IsConvolution = true
		}
		return
	}

	pk.IsAttention = true
	pk.SubBlockID = groupInt(m, "subblock_id")
	if pk.BlockType == "middle" {
		pk.CanonicalName = canonical("MID", pk.BlockID)
		return
	}

	idx := 3*pk.BlockID + pk.SubBlockID
	pk.LinearIndex = idx
	if pk.BlockType == "output" {
		pk.CanonicalName = canonical("OUT", FamilyUNetSDXL.FixedBlockCount()+1+idx)
	} else {
		pk.CanonicalName = canonical("IN", idx)
	}
}

// peft fuellt Sub-Typ und Modalitaet fuer diffusers/PEFT benannte Flux-Keys
func peft(pk *ParsedKey, m *regexp2.Match) {
	typ, sub := group(m, "type"), group(m, "subtype")
	pk.SubType = typ
	if sub != "" && !strings.HasPrefix(sub, "lora_") {
		pk.SubType = typ + "." + sub
	}
	pk.IsAttention = typ == "attn"

	if pk.Family == FamilyFluxDouble {
		pk.Modality = "img"
		if strings.HasSuffix(typ, "_context") || strings.HasPrefix(sub, "add_") || strings.HasPrefix(sub, "to_add_") {
			pk.Modality = "txt"
		}
	}
}
