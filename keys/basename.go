package keys

import (
	"slices"
	"strings"
)

// suffixParts sind die Format-Suffixe, die zu einem logischen Gewicht gehoeren
var suffixParts = []string{
	"weight",
	"alpha",
	"lora_up",
	"lora_down",
	"lora_A",
	"lora_B",
	"lokr_w1",
	"lokr_w2",
	"lokr_w1_a",
	"lokr_w1_b",
	"lokr_w2_a",
	"lokr_w2_b",
	"lokr_t2",
	"hada_w1_a",
	"hada_w1_b",
	"hada_w2_a",
	"hada_w2_b",
	"hada_t1",
	"hada_t2",
	"oft_diag",
	"dora_scale",
	"diff",
	"diff_b",
}

// BaseName entfernt die Format-Suffixe eines Keys, z.B.
// "lora_unet_x.lora_up.weight" -> "lora_unet_x"
func BaseName(key string) string {
	parts := strings.Split(key, ".")
	parts = slices.DeleteFunc(parts, func(p string) bool {
		return slices.Contains(suffixParts, p)
	})
	return strings.Join(parts, ".")
}

// BaseNames gibt die sortierten, eindeutigen Basis-Namen der Keys zurueck
func BaseNames(ks []string) []string {
	names := make([]string, 0, len(ks))
	for _, k := range ks {
		names = append(names, BaseName(k))
	}

	slices.Sort(names)
	return slices.Compact(names)
}
