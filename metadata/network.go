// network.go - Netzwerk-Modul und Netzwerk-Typ
//
// Hauptfunktionen:
// - NetworkModule: Welcher Trainer das Netzwerk erzeugt hat
// - NetworkType: LoRA, LoCon, LoHa, LoKr, ...
// - WeightDecomposition: DoRA Erkennung
// - RankStabilized: rs-LoRA Erkennung

package metadata

import (
	"log/slog"
	"strings"
)

// Module identifiziert das Trainings-Netzwerkmodul
type Module string

const (
	ModuleKohyaLoRA       Module = "kohya-ss/lora"
	ModuleKohyaLoRAFlux   Module = "kohya-ss/lora_flux"
	ModuleKohyaLoRASD3    Module = "kohya-ss/lora_sd3"
	ModuleKohyaLoRALumina Module = "kohya-ss/lora_lumina"
	ModuleKohyaLoRAFA     Module = "kohya-ss/lora_fa"
	ModuleKohyaDyLoRA     Module = "kohya-ss/dylora"
	ModuleKohyaOFT        Module = "kohya-ss/oft"
	ModuleLycoris         Module = "lycoris"
	ModuleNone            Module = "no_module_found"
)

var modules = map[string]Module{
	"networks.lora":        ModuleKohyaLoRA,
	"networks.lora_flux":   ModuleKohyaLoRAFlux,
	"networks.lora_sd3":    ModuleKohyaLoRASD3,
	"networks.lora_lumina": ModuleKohyaLoRALumina,
	"networks.lora_fa":     ModuleKohyaLoRAFA,
	"networks.dylora":      ModuleKohyaDyLoRA,
	"networks.oft":         ModuleKohyaOFT,
	"lycoris.kohya":        ModuleLycoris,
}

// NetworkModule ordnet ss_network_module einem bekannten Modul zu
func (m *Metadata) NetworkModule() Module {
	s, ok := m.raw.Get(KeyNetworkModule)
	if !ok {
		return ModuleNone
	}

	if mod, ok := modules[strings.TrimSpace(s)]; ok {
		return mod
	}
	return ModuleNone
}

// Type ist die Art der Gewichts-Zerlegung
type Type string

const (
	TypeLoRA       Type = "LoRA"
	TypeLoRAC3Lier Type = "LoRAC3Lier"
	TypeLoRAFA     Type = "LoRAFA"
	TypeDyLoRA     Type = "DyLoRA"
	TypeOFT        Type = "OFT"
	TypeDiagOFT    Type = "DiagOFT"
	TypeBOFT       Type = "BOFT"
	TypeLoCon      Type = "LoCon"
	TypeLoHa       Type = "LoHa"
	TypeLoKr       Type = "LoKr"
	TypeGLoRA      Type = "GLoRA"
	TypeGLoKr      Type = "GLoKr"
	TypeUnknown    Type = "Unknown"
)

var lycorisAlgos = map[string]Type{
	"lora":     TypeLoRA,
	"locon":    TypeLoCon,
	"loha":     TypeLoHa,
	"lokr":     TypeLoKr,
	"glora":    TypeGLoRA,
	"glokr":    TypeGLoKr,
	"diag-oft": TypeDiagOFT,
	"boft":     TypeBOFT,
}

// NetworkType leitet den Netzwerk-Typ aus Modul und Argumenten ab
func (m *Metadata) NetworkType() Type {
	switch mod := m.NetworkModule(); mod {
	case ModuleKohyaLoRA:
		if args := m.NetworkArgs(); args != nil && args.ConvDim != nil {
			return TypeLoRAC3Lier
		}
		return TypeLoRA
	case ModuleKohyaLoRAFlux, ModuleKohyaLoRASD3, ModuleKohyaLoRALumina:
		return TypeLoRA
	case ModuleKohyaLoRAFA:
		return TypeLoRAFA
	case ModuleKohyaDyLoRA:
		return TypeDyLoRA
	case ModuleKohyaOFT:
		return TypeOFT
	case ModuleLycoris:
		args := m.NetworkArgs()
		if args == nil || args.Algo == "" {
			return TypeLoRA
		}

		if t, ok := lycorisAlgos[strings.ToLower(args.Algo)]; ok {
			return t
		}

		slog.Warn("unknown lycoris algo", "algo", args.Algo)
		return TypeUnknown
	default:
		return TypeUnknown
	}
}

// WeightDecomposition gibt "DoRA" zurueck wenn dora_wd gesetzt ist
func (m *Metadata) WeightDecomposition() string {
	if args := m.NetworkArgs(); args != nil && flag(args.DoRAWD) {
		return "DoRA"
	}
	return ""
}

// RankStabilized meldet rs-LoRA Skalierung (alpha/sqrt(rank))
func (m *Metadata) RankStabilized() bool {
	args := m.NetworkArgs()
	return args != nil && (flag(args.RSLoRA) || flag(args.RankStabilized))
}
