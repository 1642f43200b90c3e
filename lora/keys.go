// keys.go - Schluessel-Filter einer LoRA Datei

package lora

import (
	"strings"

	"github.com/lora-inspector/inspector/keys"
)

// Keys gibt alle Tensor-Namen in Datei-Reihenfolge zurueck
func (f *File) Keys() []string {
	return f.st.Keys()
}

func (f *File) keysContaining(subs ...string) []string {
	var out []string
	for _, k := range f.st.Keys() {
		for _, s := range subs {
			if strings.Contains(k, s) {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// WeightKeys sind die Schluessel, die einen Gewichts-Faktor tragen
func (f *File) WeightKeys() []string {
	return f.keysContaining("weight", "hada_w1", "lokr_w1", "oft_diag")
}

// AlphaKeys sind alle alpha Schluessel
func (f *File) AlphaKeys() []string {
	return f.keysContaining("alpha")
}

// UNetKeys sind alle Schluessel des UNet (bzw. Transformer) Teils
func (f *File) UNetKeys() []string {
	return f.keysContaining("lora_unet", "lora_transformer", "transformer.")
}

// TextEncoderKeys sind alle Schluessel der Text-Encoder
func (f *File) TextEncoderKeys() []string {
	return f.keysContaining("lora_te")
}

// BaseNames sind die sortierten, eindeutigen Base-Namen der Gewichts-Schluessel
func (f *File) BaseNames() []string {
	return keys.BaseNames(f.WeightKeys())
}

// Classified ist das Ergebnis von Classify
type Classified struct {
	Keys         []keys.ParsedKey
	Unrecognized []string
}

// Classify klassifiziert alle Base-Namen; unbekannte Formate werden
// gesammelt statt abzubrechen
func (f *File) Classify() Classified {
	var c Classified
	for _, name := range f.BaseNames() {
		pk, err := keys.Classify(name)
		if err != nil {
			c.Unrecognized = append(c.Unrecognized, name)
			continue
		}
		c.Keys = append(c.Keys, pk)
	}
	return c
}
